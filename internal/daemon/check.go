package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/netxfw/netxmap/internal/config"
	"github.com/netxfw/netxmap/internal/plugins"
	"github.com/netxfw/netxmap/internal/plugins/types"
	"github.com/netxfw/netxmap/internal/utils/logger"
	apperrors "github.com/netxfw/netxmap/pkg/errors"
)

// TestConfiguration validates the syntax and values of the configuration file.
// TestConfiguration 验证配置文件的语法和值。
func TestConfiguration(ctx context.Context, configPath string) error {
	log := logger.Get(ctx)
	if configPath == "" {
		configPath = config.GetConfigPath()
	}
	log.Infof("[SCAN] Testing global configuration in %s...", configPath)

	cfg, err := types.LoadGlobalConfig(configPath)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}

	var errs []error
	for _, p := range plugins.GetPlugins() {
		if err := p.Validate(cfg); err != nil {
			log.Errorf("[ERROR] Validation failed for plugin %s: %v", p.Name(), err)
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		log.Infof("[OK] Plugin %s configuration is valid", p.Name())
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrConfigInvalid, errors.Join(errs...))
	}
	log.Infof("[SUCCESS] All configurations are valid!")
	return nil
}
