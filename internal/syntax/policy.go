package syntax

import "time"

// Hotness is a document's visibility signal. It informs retention and
// whether background parsing is allowed at all while the document is not
// displayed.
type Hotness int

const (
	// Cold means the document is not visible and unlikely to become so
	// soon; retention policy is free to drop heavy state.
	Cold Hotness = iota
	// Warm means the document is not currently visible but likely to
	// become visible again soon (e.g. a background split or MRU tab).
	Warm
	// Visible means the document is actively displayed.
	Visible
)

func (h Hotness) String() string {
	switch h {
	case Cold:
		return "Cold"
	case Warm:
		return "Warm"
	case Visible:
		return "Visible"
	default:
		return "Hotness(?)"
	}
}

// Tier is the size class of a document, controlling every parse budget.
type Tier int

const (
	// TierS covers documents up to 256 KiB.
	TierS Tier = iota
	// TierM covers documents up to 1 MiB.
	TierM
	// TierL covers everything larger.
	TierL
)

func (t Tier) String() string {
	switch t {
	case TierS:
		return "S"
	case TierM:
		return "M"
	case TierL:
		return "L"
	default:
		return "Tier(?)"
	}
}

// InjectionPolicy controls whether a parse resolves injected-language
// sublayers (e.g. embedded SQL in a string, or JSX in JS).
type InjectionPolicy int

const (
	// InjectionEager resolves injections during the parse.
	InjectionEager InjectionPolicy = iota
	// InjectionDisabled skips injection resolution entirely.
	InjectionDisabled
)

// RetentionPolicy controls whether an installed tree survives once its
// document is no longer Visible or Warm.
type RetentionPolicy struct {
	// Kind selects the retention behavior.
	Kind RetentionKind
	// TTL is only meaningful when Kind is RetentionDropAfter.
	TTL time.Duration
}

// RetentionKind enumerates the retention behaviors.
type RetentionKind int

const (
	// RetentionKeep never drops the tree.
	RetentionKeep RetentionKind = iota
	// RetentionDropWhenHidden drops the tree the instant the document
	// stops being Visible or Warm.
	RetentionDropWhenHidden
	// RetentionDropAfter drops the tree once TTL has elapsed since the
	// document was last Visible or Warm.
	RetentionDropAfter
)

// Keep constructs a RetentionPolicy that never drops its tree.
func Keep() RetentionPolicy { return RetentionPolicy{Kind: RetentionKeep} }

// DropWhenHidden constructs a RetentionPolicy that drops immediately on
// hide.
func DropWhenHidden() RetentionPolicy { return RetentionPolicy{Kind: RetentionDropWhenHidden} }

// DropAfter constructs a RetentionPolicy that drops after ttl has elapsed
// since the document was last visible.
func DropAfter(ttl time.Duration) RetentionPolicy {
	return RetentionPolicy{Kind: RetentionDropAfter, TTL: ttl}
}

// TierCfg holds every budget and policy knob for one size tier.
type TierCfg struct {
	ParseTimeout      time.Duration
	Debounce          time.Duration
	CooldownOnTimeout time.Duration
	CooldownOnError   time.Duration
	Injections        InjectionPolicy

	RetentionHiddenFull     RetentionPolicy
	RetentionHiddenViewport RetentionPolicy
	ParseWhenHidden         bool

	// ViewportWindowMax bounds the byte width of a viewport-bounded parse
	// window and is also used as the key alignment stride.
	ViewportWindowMax uint32
	// ViewportStageBBudget is nil when Stage-B enrichment is disabled for
	// this tier (S and M always enrich as part of the full parse).
	ViewportStageBBudget      *time.Duration
	ViewportStageBMinStable   int
	ViewportCooldownOnTimeout time.Duration
	ViewportCooldownOnError   time.Duration
}

// TieredSyntaxPolicy maps a byte size to a Tier and holds each tier's
// TierCfg.
type TieredSyntaxPolicy struct {
	SMaxBytesInclusive uint64
	MMaxBytesInclusive uint64

	S TierCfg
	M TierCfg
	L TierCfg
}

// DefaultTieredSyntaxPolicy returns the built-in tier budgets:
// S <= 256KiB, M <= 1MiB, L unbounded.
func DefaultTieredSyntaxPolicy() TieredSyntaxPolicy {
	stageBBudget := 900 * time.Millisecond
	return TieredSyntaxPolicy{
		SMaxBytesInclusive: 256 * 1024,
		MMaxBytesInclusive: 1024 * 1024,
		S: TierCfg{
			ParseTimeout:              500 * time.Millisecond,
			Debounce:                  80 * time.Millisecond,
			CooldownOnTimeout:         400 * time.Millisecond,
			CooldownOnError:           150 * time.Millisecond,
			Injections:                InjectionEager,
			RetentionHiddenFull:       Keep(),
			RetentionHiddenViewport:   Keep(),
			ParseWhenHidden:           false,
			ViewportWindowMax:         64 * 1024,
			ViewportStageBMinStable:   2,
			ViewportCooldownOnTimeout: 400 * time.Millisecond,
			ViewportCooldownOnError:   150 * time.Millisecond,
		},
		M: TierCfg{
			ParseTimeout:              1200 * time.Millisecond,
			Debounce:                  140 * time.Millisecond,
			CooldownOnTimeout:         2 * time.Second,
			CooldownOnError:           250 * time.Millisecond,
			Injections:                InjectionEager,
			RetentionHiddenFull:       DropAfter(60 * time.Second),
			RetentionHiddenViewport:   DropAfter(60 * time.Second),
			ParseWhenHidden:           false,
			ViewportWindowMax:         64 * 1024,
			ViewportStageBMinStable:   2,
			ViewportCooldownOnTimeout: 2 * time.Second,
			ViewportCooldownOnError:   250 * time.Millisecond,
		},
		L: TierCfg{
			ParseTimeout:              3 * time.Second,
			Debounce:                  250 * time.Millisecond,
			CooldownOnTimeout:         10 * time.Second,
			CooldownOnError:           2 * time.Second,
			Injections:                InjectionDisabled,
			RetentionHiddenFull:       DropWhenHidden(),
			RetentionHiddenViewport:   DropWhenHidden(),
			ParseWhenHidden:           false,
			ViewportWindowMax:         64 * 1024,
			ViewportStageBBudget:      &stageBBudget,
			ViewportStageBMinStable:   3,
			ViewportCooldownOnTimeout: 5 * time.Second,
			ViewportCooldownOnError:   1 * time.Second,
		},
	}
}

// TierForBytes computes the size tier for a document of the given byte
// length.
func (p TieredSyntaxPolicy) TierForBytes(n uint64) Tier {
	if n <= p.SMaxBytesInclusive {
		return TierS
	}
	if n <= p.MMaxBytesInclusive {
		return TierM
	}
	return TierL
}

// Cfg returns the TierCfg for the given tier.
func (p TieredSyntaxPolicy) Cfg(t Tier) TierCfg {
	switch t {
	case TierS:
		return p.S
	case TierM:
		return p.M
	default:
		return p.L
	}
}

// OptKey is the subset of parse options that must match between a
// completed task and the manager's current configuration for its result
// to be installable.
type OptKey struct {
	Injections InjectionPolicy
}
