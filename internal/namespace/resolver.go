// Package namespace derives per-user storage namespaces and creates them on first use.
package namespace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"neurodoc/internal/domain"
)

const (
	// DefaultPrefix is prepended to every user namespace.
	DefaultPrefix = "neurallens"
	// MaxNameLength is the longest index name the managed vector service accepts.
	MaxNameLength = 45
)

// Resolver maps user identifiers to namespace names and ensures their backing storage exists.
type Resolver struct {
	store  domain.VectorStore
	prefix string
	spec   domain.NamespaceSpec
	log    *zap.Logger
}

// Options holds the fixed configuration applied to newly created namespaces.
type Options struct {
	Prefix    string
	Dimension int
	Metric    string
	Cloud     string
	Region    string
}

func NewResolver(store domain.VectorStore, opts Options, log *zap.Logger) *Resolver {
	prefix := Sanitize(opts.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if opts.Dimension <= 0 {
		opts.Dimension = 384
	}
	if opts.Metric == "" {
		opts.Metric = "cosine"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		store:  store,
		prefix: prefix,
		spec: domain.NamespaceSpec{
			Dimension: opts.Dimension,
			Metric:    opts.Metric,
			Cloud:     opts.Cloud,
			Region:    opts.Region,
		},
		log: log,
	}
}

// Resolve returns the namespace name for userID. It is a pure function of the prefix and userID.
func (r *Resolver) Resolve(userID string) (string, error) {
	return Resolve(r.prefix, userID)
}

// Ensure creates the namespace when it does not exist yet. Losing a creation race is not an error.
func (r *Resolver) Ensure(ctx context.Context, name string) error {
	names, err := r.store.ListNamespaces(ctx)
	if err != nil {
		return domain.Classify(domain.ErrStoreUnavailable, fmt.Errorf("list namespaces: %w", err))
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	spec := r.spec
	spec.Name = name
	r.log.Info("creating namespace",
		zap.String("namespace", name), zap.Int("dimension", spec.Dimension), zap.String("metric", spec.Metric))
	if err := r.store.CreateNamespace(ctx, spec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil
		}
		return domain.Classify(domain.ErrStoreUnavailable, fmt.Errorf("create namespace %s: %w", name, err))
	}
	return nil
}

// ResolveAndEnsure is Resolve followed by Ensure.
func (r *Resolver) ResolveAndEnsure(ctx context.Context, userID string) (string, error) {
	name, err := r.Resolve(userID)
	if err != nil {
		return "", err
	}
	if err := r.Ensure(ctx, name); err != nil {
		return "", err
	}
	return name, nil
}

// Resolve joins prefix and userID and sanitizes the result.
func Resolve(prefix, userID string) (string, error) {
	user := Sanitize(userID)
	if user == "" {
		return "", fmt.Errorf("%w: user id %q has no usable characters", domain.ErrValidation, userID)
	}
	name := user
	if p := Sanitize(prefix); p != "" {
		name = p + "-" + user
	}
	if len(name) > MaxNameLength {
		name = strings.TrimRight(name[:MaxNameLength], "-")
	}
	return name, nil
}

// Sanitize lower-cases s, replaces every run of characters outside [a-z0-9-] with one hyphen
// and trims hyphens from both ends.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		default:
			pendingHyphen = true
		}
	}
	return b.String()
}
