package meshchat

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/opd-ai/meshchat/store"
	"github.com/sirupsen/logrus"
)

// StoreBackend selects how session state is persisted.
type StoreBackend string

const (
	// StoreJSON keeps one JSON file per account.
	StoreJSON StoreBackend = "json"
	// StoreLevelDB keeps one LevelDB key per account.
	StoreLevelDB StoreBackend = "leveldb"
)

// ErrInvalidOptions indicates an Options value that failed validation.
var ErrInvalidOptions = errors.New("invalid options")

// Options contains configuration options for running a meshchat node.
type Options struct {
	DataDir          string
	ListenAddr       string
	Peers            []string
	AnnounceInterval time.Duration
	AnnounceDelay    time.Duration
	RedialInterval   time.Duration
	DialTimeout      time.Duration
	StoreBackend     StoreBackend
	LogLevel         string
	LogFile          string
	MetricsAddr      string
}

// NewOptions creates a new default Options.
func NewOptions() *Options {
	return &Options{
		DataDir:          "meshchat-data",
		ListenAddr:       ":7400",
		AnnounceInterval: 30 * time.Second,
		AnnounceDelay:    500 * time.Millisecond,
		RedialInterval:   15 * time.Second,
		DialTimeout:      10 * time.Second,
		StoreBackend:     StoreJSON,
		LogLevel:         "info",
	}
}

// Validate checks the options for values a node cannot run with.
func (o *Options) Validate() error {
	if o.DataDir == "" {
		return fmt.Errorf("%w: data directory is required", ErrInvalidOptions)
	}
	if o.AnnounceInterval <= 0 {
		return fmt.Errorf("%w: announce interval must be positive", ErrInvalidOptions)
	}
	if o.AnnounceDelay < 0 {
		return fmt.Errorf("%w: announce delay cannot be negative", ErrInvalidOptions)
	}
	if o.RedialInterval <= 0 || o.DialTimeout <= 0 {
		return fmt.Errorf("%w: redial interval and dial timeout must be positive", ErrInvalidOptions)
	}
	switch o.StoreBackend {
	case StoreJSON, StoreLevelDB:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidOptions, o.StoreBackend)
	}
	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	for _, peer := range o.Peers {
		if peer == "" {
			return fmt.Errorf("%w: empty peer address", ErrInvalidOptions)
		}
	}
	return nil
}

// CredentialsPath returns the credential store file under the data directory.
func (o *Options) CredentialsPath() string {
	return filepath.Join(o.DataDir, "accounts.json")
}

// OpenStore opens the configured state backend under the data directory.
func (o *Options) OpenStore() (store.Store, error) {
	switch o.StoreBackend {
	case StoreLevelDB:
		return store.NewLevelStore(filepath.Join(o.DataDir, "state.db"))
	case StoreJSON, "":
		return store.NewFileStore(filepath.Join(o.DataDir, "state"))
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", ErrInvalidOptions, o.StoreBackend)
	}
}
