package ayascan

import (
	"context"
	"fmt"

	"github.com/himanishpuri/AyaScan/pkg/logger"
)

// Service wires the history store, the recognition pipeline and the
// session together. It is built once at startup and closed at shutdown.
type Service struct {
	storage     Storage
	ownsStorage bool
	pipeline    *Pipeline
	session     *Session
	log         Logger
	config      *Config
}

func NewService(ctx context.Context, opts ...Option) (*Service, error) {
	cfg := buildConfig(opts)

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	stor := cfg.Storage
	owns := false
	if stor == nil {
		var err error
		stor, err = OpenStorage(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
		owns = true
	}

	session := NewSession(stor, cfg.Logger)
	pipeline, err := NewPipeline(cfg.Recognizer, session.OnStablePair,
		WithWindowSize(cfg.WindowSize),
		WithThreshold(cfg.Threshold),
		WithInnerRadiusRatio(cfg.InnerRadiusRatio),
		WithLogger(cfg.Logger),
	)
	if err != nil {
		if owns {
			stor.Close()
		}
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	session.attach(pipeline)

	return &Service{
		storage:     stor,
		ownsStorage: owns,
		pipeline:    pipeline,
		session:     session,
		log:         cfg.Logger,
		config:      cfg,
	}, nil
}

// Process runs one frame through the pipeline.
func (s *Service) Process(ctx context.Context, frame *Frame) error {
	return s.pipeline.Process(ctx, frame)
}

// Analyze runs one frame through the pipeline and reports the reading it
// confirmed, if any.
func (s *Service) Analyze(ctx context.Context, frame *Frame) (Pair, bool, error) {
	return s.pipeline.Analyze(ctx, frame)
}

// Run drains frames until the channel closes or ctx is done.
func (s *Service) Run(ctx context.Context, frames <-chan *Frame) error {
	s.log.Infof("Recognition started (window=%d, threshold=%d)", s.config.WindowSize, s.config.Threshold)
	err := s.pipeline.Run(ctx, frames)
	st := s.pipeline.Stats()
	s.log.Infof("Recognition stopped: %d frames, %d candidates, %d confirmations, %d failures",
		st.Frames, st.Candidates, st.Confirmations, st.Failures)
	return err
}

// Save stores a reading directly, bypassing the session.
func (s *Service) Save(ctx context.Context, letter, number string) (Record, error) {
	rec, err := s.storage.Insert(ctx, letter, number)
	if err != nil {
		return Record{}, fmt.Errorf("failed to save result: %w", err)
	}
	s.log.Infof("Saved result ID=%d (%s-%s)", rec.ID, rec.Letter, rec.Number)
	return rec, nil
}

func (s *Service) History(ctx context.Context) ([]Record, error) {
	return s.storage.GetAll(ctx)
}

// Count returns the number of stored readings.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.storage.Count(ctx)
}

func (s *Service) Search(ctx context.Context, query string) ([]Record, error) {
	return s.storage.Search(ctx, query)
}

func (s *Service) Pipeline() *Pipeline { return s.pipeline }
func (s *Service) Session() *Session   { return s.session }

// Close releases the store if the service opened it.
func (s *Service) Close() error {
	if !s.ownsStorage {
		return nil
	}
	return s.storage.Close()
}
