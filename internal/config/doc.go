// Package config is Keystorm's configuration system: TOML settings files
// merged user-then-project, a handful of KEYSTORM_* environment
// overrides, runtime Set calls, and change notification through the
// notify subpackage.
//
// Reads go through the typed section accessors:
//
//	cfg := config.New(config.WithUserConfigDir(dir))
//	_ = cfg.Load(ctx)
//	tab := cfg.Editor().TabSize
//	theme := cfg.UI().Theme
//	tiers := cfg.Syntax() // per-tier parse budgets for the scheduler
//
// Every accessor returns a snapshot struct with built-in defaults for
// unset keys; type errors are recorded (ConfigErrors) and fall back to
// the default instead of failing the caller.
package config
