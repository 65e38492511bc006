package registry

import (
	"math"
	"sort"
)

// Registry resolves math-function names for the parser and the executor.
// Each shell handle owns one; evaluation is single-threaded per handle so
// no locking is needed.
type Registry struct {
	entries map[string]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// NewStandard returns a registry preloaded with the standard math set.
func NewStandard() *Registry {
	r := New()
	r.initialize()
	return r
}

// Lookup returns the entry for name, or nil.
func (r *Registry) Lookup(name string) *Entry {
	return r.entries[name]
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) add(e *Entry) *Entry {
	r.entries[e.Name] = e
	return e
}

func (r *Registry) Register1F(name string, fn func(float64) float64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind1F, F1: fn, arity: 1})
}

func (r *Registry) Register2F(name string, fn func(float64, float64) float64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind2F, F2: fn, arity: 2})
}

func (r *Registry) Register3F(name string, fn func(float64, float64, float64) float64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind3F, F3: fn, arity: 3})
}

func (r *Registry) Register1I(name string, fn func(float64) int64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind1I, I1: fn, arity: 1})
}

func (r *Registry) Register2I(name string, fn func(float64, float64) int64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind2I, I2: fn, arity: 2})
}

func (r *Registry) Register2FI(name string, fn func(float64, int) float64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind2FI, FI2: fn, arity: 2})
}

func (r *Registry) Register1V(name string, fn func(int, float64) float64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind1V, V1: fn, arity: 1})
}

func (r *Registry) Register2V(name string, fn func(int, float64, float64) float64) *Entry {
	return r.add(&Entry{Name: name, Kind: Kind2V, V2: fn, arity: 2})
}

// RegisterUser registers a user-defined function of the given arity (1-3);
// calls to it are marshalled through the shell runtime.
func (r *Registry) RegisterUser(name string, arity int, fn UserFunc) *Entry {
	if arity < 1 {
		arity = 1
	}
	if arity > 3 {
		arity = 3
	}
	return r.add(&Entry{Name: name, Kind: KindUser, User: fn, arity: arity})
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// initialize loads the libm-equivalent set.
func (r *Registry) initialize() {
	one := map[string]func(float64) float64{
		"abs":       math.Abs,
		"acos":      math.Acos,
		"acosh":     math.Acosh,
		"asin":      math.Asin,
		"asinh":     math.Asinh,
		"atan":      math.Atan,
		"atanh":     math.Atanh,
		"cbrt":      math.Cbrt,
		"ceil":      math.Ceil,
		"cos":       math.Cos,
		"cosh":      math.Cosh,
		"erf":       math.Erf,
		"erfc":      math.Erfc,
		"exp":       math.Exp,
		"exp2":      math.Exp2,
		"expm1":     math.Expm1,
		"fabs":      math.Abs,
		"floor":     math.Floor,
		"int":       math.Trunc,
		"log":       math.Log,
		"log10":     math.Log10,
		"log1p":     math.Log1p,
		"log2":      math.Log2,
		"logb":      math.Logb,
		"nearbyint": math.RoundToEven,
		"rint":      math.RoundToEven,
		"round":     math.Round,
		"sin":       math.Sin,
		"sinh":      math.Sinh,
		"sqrt":      math.Sqrt,
		"tan":       math.Tan,
		"tanh":      math.Tanh,
		"tgamma":    math.Gamma,
		"trunc":     math.Trunc,
	}
	for name, fn := range one {
		r.Register1F(name, fn)
	}
	r.Register1F("lgamma", func(x float64) float64 {
		l, _ := math.Lgamma(x)
		return l
	})

	two := map[string]func(float64, float64) float64{
		"atan2":     math.Atan2,
		"copysign":  math.Copysign,
		"fdim":      math.Dim,
		"fmax":      math.Max,
		"fmin":      math.Min,
		"fmod":      math.Mod,
		"hypot":     math.Hypot,
		"nextafter": math.Nextafter,
		"pow":       math.Pow,
		"remainder": math.Remainder,
	}
	for name, fn := range two {
		r.Register2F(name, fn)
	}

	r.Register3F("fma", math.FMA)

	r.Register1I("ilogb", func(x float64) int64 { return int64(math.Ilogb(x)) })
	r.Register1I("isinf", func(x float64) int64 { return b2i(math.IsInf(x, 0)) })
	r.Register1I("isnan", func(x float64) int64 { return b2i(math.IsNaN(x)) })
	r.Register1I("signbit", func(x float64) int64 { return b2i(math.Signbit(x)) })
	r.Register1I("finite", func(x float64) int64 {
		return b2i(!math.IsInf(x, 0) && !math.IsNaN(x))
	})

	r.Register2I("isgreater", func(x, y float64) int64 { return b2i(x > y) })
	r.Register2I("isless", func(x, y float64) int64 { return b2i(x < y) })
	r.Register2I("unordered", func(x, y float64) int64 {
		return b2i(math.IsNaN(x) || math.IsNaN(y))
	})

	r.Register2FI("ldexp", math.Ldexp)
	r.Register2FI("scalbn", math.Ldexp)
}
