package timezones

// EmptySearchMode decides what an empty query returns.
type EmptySearchMode string

const (
	EmptySearchNone EmptySearchMode = "none"
	EmptySearchTop  EmptySearchMode = "top"
)

// Options configures searching and the JSON handler.
type Options struct {
	RoutePath       string
	SearchParam     string
	LimitParam      string
	DefaultLimit    int
	MaxLimit        int
	EmptySearchMode EmptySearchMode

	// Zones replaces the embedded list when non-nil.
	Zones []string
}

// OptionFn adjusts Options.
type OptionFn func(*Options)

// DefaultOptions returns the baseline configuration.
func DefaultOptions() Options {
	return Options{
		RoutePath:       "/api/timezones",
		SearchParam:     "q",
		LimitParam:      "limit",
		DefaultLimit:    20,
		MaxLimit:        100,
		EmptySearchMode: EmptySearchNone,
	}
}

// NewOptions applies fns over the defaults and clamps invalid values back to
// them.
func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn != nil {
			fn(&opts)
		}
	}
	defaults := DefaultOptions()
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaults.DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = defaults.MaxLimit
	}
	if opts.EmptySearchMode == "" {
		opts.EmptySearchMode = EmptySearchNone
	}
	if opts.RoutePath == "" {
		opts.RoutePath = defaults.RoutePath
	}
	if opts.SearchParam == "" {
		opts.SearchParam = defaults.SearchParam
	}
	if opts.LimitParam == "" {
		opts.LimitParam = defaults.LimitParam
	}
	if opts.Zones != nil {
		opts.Zones = append([]string{}, opts.Zones...)
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) { o.RoutePath = path }
}

func WithSearchParam(name string) OptionFn {
	return func(o *Options) { o.SearchParam = name }
}

func WithLimitParam(name string) OptionFn {
	return func(o *Options) { o.LimitParam = name }
}

func WithDefaultLimit(limit int) OptionFn {
	return func(o *Options) { o.DefaultLimit = limit }
}

func WithMaxLimit(limit int) OptionFn {
	return func(o *Options) { o.MaxLimit = limit }
}

func WithEmptySearchMode(mode EmptySearchMode) OptionFn {
	return func(o *Options) { o.EmptySearchMode = mode }
}

func WithZones(zones []string) OptionFn {
	return func(o *Options) {
		if zones == nil {
			o.Zones = nil
			return
		}
		o.Zones = append([]string{}, zones...)
	}
}

func clampLimit(limit int, opts Options) int {
	if limit < 0 {
		return 0
	}
	if limit == 0 {
		limit = opts.DefaultLimit
	}
	if opts.MaxLimit > 0 && limit > opts.MaxLimit {
		return opts.MaxLimit
	}
	return limit
}
