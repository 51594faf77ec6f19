package anchor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hotwings/hwlock/internal/config"
	"github.com/hotwings/hwlock/internal/solana"
)

var ErrProgramNotFound = errors.New("program not found in workspace")

// Workspace resolves program handles the way anchor.workspace does:
// ids from Anchor.toml, interfaces from target/idl.
type Workspace struct {
	Root     string
	Cluster  string
	Manifest *config.Manifest
	logger   *zap.Logger
}

// ProgramOption customises program resolution
type ProgramOption func(*resolveOptions)

type resolveOptions struct {
	override solana.PublicKey
	fallback solana.PublicKey
	idl      *IDL
}

// WithProgramID forces the program id, ignoring the workspace
func WithProgramID(id solana.PublicKey) ProgramOption {
	return func(o *resolveOptions) { o.override = id }
}

// WithDefaultID is used when neither Anchor.toml nor the IDL names an id
func WithDefaultID(id solana.PublicKey) ProgramOption {
	return func(o *resolveOptions) { o.fallback = id }
}

// WithIDL is used when target/idl has no IDL for the program
func WithIDL(idl *IDL) ProgramOption {
	return func(o *resolveOptions) { o.idl = idl }
}

// OpenWorkspace loads Anchor.toml from root if present
func OpenWorkspace(root, cluster string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Workspace{Root: root, Cluster: cluster, logger: logger}

	m, err := config.LoadManifest(root)
	switch {
	case err == nil:
		w.Manifest = m
	case errors.Is(err, config.ErrManifestNotFound):
		logger.Debug("no Anchor.toml in workspace", zap.String("root", root))
	default:
		return nil, err
	}
	return w, nil
}

// IDLPath returns target/idl/<snake_name>.json under the workspace root
func (w *Workspace) IDLPath(name string) string {
	return filepath.Join(w.Root, "target", "idl", SnakeCase(name)+".json")
}

// Program resolves a program by workspace key (HotwingsLocking) or IDL name
// (hotwings_locking). The id comes from, in order: WithProgramID, Anchor.toml
// [programs.<cluster>], the IDL address, WithDefaultID.
func (w *Workspace) Program(name string, opts ...ProgramOption) (*Program, error) {
	var o resolveOptions
	for _, opt := range opts {
		opt(&o)
	}

	snake := SnakeCase(name)

	idl, err := LoadIDL(w.IDLPath(snake))
	switch {
	case err == nil:
		w.logger.Debug("loaded workspace IDL", zap.String("program", snake), zap.Int("instructions", len(idl.Instructions)))
	case errors.Is(err, os.ErrNotExist):
		idl = o.idl
	default:
		return nil, err
	}

	id, source, err := w.resolveID(snake, idl, o)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("resolved program",
		zap.String("program", snake),
		zap.String("id", id.String()),
		zap.String("source", source),
		zap.Bool("idl", idl != nil))

	return NewProgram(id, snake, idl), nil
}

func (w *Workspace) resolveID(name string, idl *IDL, o resolveOptions) (solana.PublicKey, string, error) {
	if !o.override.IsZero() {
		return o.override, "flag", nil
	}

	if s, ok := w.Manifest.ProgramID(w.Cluster, name); ok {
		id, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return solana.PublicKey{}, "", fmt.Errorf("%s programs.%s.%s: %w", config.ManifestFile, w.Cluster, name, err)
		}
		return id, config.ManifestFile, nil
	}

	if idl != nil && idl.Address != "" {
		id, err := solana.PublicKeyFromBase58(idl.Address)
		if err != nil {
			return solana.PublicKey{}, "", fmt.Errorf("IDL address: %w", err)
		}
		return id, "idl", nil
	}

	if !o.fallback.IsZero() {
		return o.fallback, "default", nil
	}

	return solana.PublicKey{}, "", fmt.Errorf("%w: %s (cluster %s)", ErrProgramNotFound, name, w.Cluster)
}
