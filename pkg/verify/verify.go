package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrymomot/mailcast/pkg/cache"
)

// Status is the overall verdict for an address.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusRisky   Status = "risky"
	StatusUnknown Status = "unknown"
)

// CacheTTL is how long a verification result is reused.
const CacheTTL = time.Hour

// Result is the outcome of verifying a single address.
type Result struct {
	VerifiedAt  time.Time `json:"verified_at"`
	Email       string    `json:"email"`
	Domain      string    `json:"domain"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	ValidSyntax bool      `json:"valid_syntax"`
	HasMX       bool      `json:"has_mx"`
	Disposable  bool      `json:"disposable"`
	Webmail     bool      `json:"webmail"`
}

// Resolver looks up mail exchangers. *net.Resolver satisfies it.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// Verifier checks addresses and caches the results.
type Verifier struct {
	resolver   Resolver
	cache      cache.Cache[Result]
	logger     *slog.Logger
	timeout    time.Duration
	allowRisky bool
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithResolver replaces the system DNS resolver.
func WithResolver(r Resolver) Option {
	return func(v *Verifier) { v.resolver = r }
}

// WithCache stores results in c. Without it every call performs a fresh lookup.
func WithCache(c cache.Cache[Result]) Option {
	return func(v *Verifier) { v.cache = c }
}

// WithLookupTimeout bounds a single MX lookup. Default: 5s.
func WithLookupTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// WithAllowRisky makes disposable addresses deliverable.
func WithAllowRisky(allow bool) Option {
	return func(v *Verifier) { v.allowRisky = allow }
}

// WithLogger sets the logger for lookup failures.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a Verifier.
func New(opts ...Option) *Verifier {
	v := &Verifier{
		resolver: net.DefaultResolver,
		logger:   slog.New(slog.DiscardHandler),
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks addr, using a cached result when one exists.
func (v *Verifier) Verify(ctx context.Context, addr string) (Result, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Result{}, ErrEmptyAddress
	}
	if v.cache == nil {
		return v.verify(ctx, addr), nil
	}
	return cache.GetOrSet(ctx, v.cache, cacheKey(addr), func(ctx context.Context) (Result, time.Duration, error) {
		return v.verify(ctx, addr), CacheTTL, nil
	})
}

// IsDeliverable reports whether a campaign should attempt addr.
// Unknown results are deliverable; risky ones only when allowed.
func (v *Verifier) IsDeliverable(ctx context.Context, addr string) bool {
	res, err := v.Verify(ctx, addr)
	if err != nil {
		return false
	}
	switch res.Status {
	case StatusValid, StatusUnknown:
		return true
	case StatusRisky:
		return v.allowRisky
	default:
		return false
	}
}

func (v *Verifier) verify(ctx context.Context, addr string) Result {
	res := Result{Email: addr, Status: StatusUnknown, VerifiedAt: time.Now().UTC()}

	domain, err := parseDomain(addr)
	if err != nil {
		res.Status = StatusInvalid
		res.Reason = err.Error()
		return res
	}
	res.ValidSyntax = true
	res.Domain = domain
	res.Disposable = IsDisposable(domain)
	res.Webmail = IsWebmail(domain)

	hasMX, err := v.lookupMX(ctx, domain)
	res.HasMX = hasMX
	switch {
	case err != nil && !errors.Is(err, ErrNoMXRecord):
		v.logger.WarnContext(ctx, "mx lookup failed", "domain", domain, "error", err)
		res.Reason = err.Error()
		if res.Disposable {
			res.Status = StatusRisky
		}
		return res
	case res.Disposable:
		res.Status = StatusRisky
		res.Reason = ErrDisposable.Error()
	case !hasMX:
		res.Status = StatusInvalid
		res.Reason = ErrNoMXRecord.Error()
	default:
		res.Status = StatusValid
	}
	return res
}

func (v *Verifier) lookupMX(ctx context.Context, domain string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return false, ErrNoMXRecord
		}
		return false, fmt.Errorf("%w: %v", ErrDNSLookup, err)
	}
	if len(records) == 0 {
		return false, ErrNoMXRecord
	}
	return true, nil
}

func parseDomain(addr string) (string, error) {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return "", ErrInvalidSyntax
	}
	at := strings.LastIndexByte(addr, '@')
	domain := strings.ToLower(addr[at+1:])
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return "", ErrInvalidSyntax
	}
	return domain, nil
}

func cacheKey(addr string) string {
	return "email_verification:" + strings.ToLower(addr)
}
