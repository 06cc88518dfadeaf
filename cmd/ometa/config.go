package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/dhamidi/ometa/compiler"
	"github.com/dhamidi/ometa/ometa"
)

// config holds the settings read from the --config file.
type config struct {
	SideEffectingRules []string
	TokenRules         []string
	MemoizeParameters  bool
	DisableXORs        bool
	Optimize           bool
}

type configKey struct{}

func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetDefault("optimize", true)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Infof("using config %s", v.ConfigFileUsed())
	}
	return &config{
		SideEffectingRules: v.GetStringSlice("side_effecting_rules"),
		TokenRules:         v.GetStringSlice("token_rules"),
		MemoizeParameters:  v.GetBool("memoize_parameters"),
		DisableXORs:        v.GetBool("disable_xors"),
		Optimize:           v.GetBool("optimize"),
	}, nil
}

func withConfig(ctx context.Context, cfg *config) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config {
	if ctx != nil {
		if cfg, ok := ctx.Value(configKey{}).(*config); ok {
			return cfg
		}
	}
	return &config{Optimize: true}
}

func (c *config) compilerOptions() []compiler.Option {
	if c.Optimize {
		return nil
	}
	return []compiler.Option{compiler.WithoutOptimization()}
}

func (c *config) matcherOptions() []ometa.Option {
	var opts []ometa.Option
	if c.MemoizeParameters {
		opts = append(opts, ometa.WithMemoizedParameters())
	}
	if c.DisableXORs {
		opts = append(opts, ometa.WithoutXORs())
	}
	return opts
}
