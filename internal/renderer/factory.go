package renderer

import (
	"sjsage522/pricewatch/config"
	apperrors "sjsage522/pricewatch/pkg/errors"
)

// FromConfig builds the renderer selected by cfg.Renderer
func FromConfig(cfg *config.Config) (Renderer, error) {
	switch cfg.Renderer {
	case config.RendererHTTP, "":
		return NewStaticRenderer(nil), nil
	case config.RendererBrowserless:
		if cfg.ChromeDBAddr == "" {
			return nil, apperrors.NewConfiguration("CHROMEDB_ADDR is required for the browserless renderer", nil)
		}
		return NewBrowserlessRenderer(cfg.ChromeDBAddr, cfg.RendererConcurrency), nil
	case config.RendererRod:
		return NewRodRenderer(cfg.RodControlURL, cfg.RendererConcurrency), nil
	default:
		return nil, apperrors.NewConfiguration("unknown renderer: "+cfg.Renderer, nil)
	}
}

// OptionsFromConfig returns render options from cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:     cfg.FetchTimeout,
		QuietWindow: cfg.SettleQuietWindow,
	}
}
