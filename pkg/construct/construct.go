// Package construct wires the search service together from its real
// dependencies: the elasticsearch client, the claims index, the ingest queue,
// the resolver and the session dispatcher.
package construct

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/olivere/elastic/v7"

	"github.com/claimhub/search-service/pkg/internal/claimqueue"
	"github.com/claimhub/search-service/pkg/search"
)

var log = logging.Logger("construct")

// ServiceConfig sets specific config values for the service
type ServiceConfig struct {
	// ElasticURLs are the addresses of the elasticsearch cluster nodes.
	ElasticURLs []string

	// IndexPrefix namespaces the claims index so deployments can share a
	// cluster.
	IndexPrefix string

	// SyncTimeout bounds a single ingest queue sync. Defaults to 600 seconds.
	SyncTimeout time.Duration

	// QueueCapacity bounds the pending ingest queue. Defaults to 65536.
	QueueCapacity int
}

type config struct {
	elasticClient *elastic.Client
	queue         *claimqueue.Queue
}

// Option configures how the service is constructed
type Option func(*config) error

// WithElasticClient uses the given client instead of dialing the configured
// cluster, letting tests inject a fake.
func WithElasticClient(client *elastic.Client) Option {
	return func(cfg *config) error {
		cfg.elasticClient = client
		return nil
	}
}

// WithClaimQueue uses the given queue for pending ingest operations.
func WithClaimQueue(queue *claimqueue.Queue) Option {
	return func(cfg *config) error {
		cfg.queue = queue
		return nil
	}
}

// Service is the query surface of the search service plus the ingest side and
// lifecycle methods.
type Service interface {
	Query(ctx context.Context, name string, payload json.RawMessage) (*search.Outputs, error)
	Resolve(ctx context.Context, urls []string) (*search.Outputs, error)
	Search(ctx context.Context, params map[string]any) (*search.Outputs, error)
	Index() *search.Index
	Writer() *search.Writer
	Startup(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type serviceWithLifeCycle struct {
	*search.Session
	index  *search.Index
	writer *search.Writer

	startupFuncs  []func(ctx context.Context) error
	shutdownFuncs []func(ctx context.Context) error
}

func (s *serviceWithLifeCycle) Index() *search.Index { return s.index }

func (s *serviceWithLifeCycle) Writer() *search.Writer { return s.writer }

func (s *serviceWithLifeCycle) Startup(ctx context.Context) error {
	for _, startupFunc := range s.startupFuncs {
		err := startupFunc(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *serviceWithLifeCycle) Shutdown(ctx context.Context) error {
	for _, shutdownFunc := range s.shutdownFuncs {
		err := shutdownFunc(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// Construct constructs a full operational search service, using real
// dependencies. Startup waits for the cluster, ensures the index exists and
// fails closed: the client is stopped on every exit path including startup
// failure.
func Construct(sc ServiceConfig, opts ...Option) (Service, error) {
	var cfg config
	for _, opt := range opts {
		err := opt(&cfg)
		if err != nil {
			return nil, err
		}
	}

	s := &serviceWithLifeCycle{}

	client := cfg.elasticClient
	if client == nil {
		urls := sc.ElasticURLs
		if len(urls) == 0 {
			log.Warnf("elasticsearch not configured, using localhost")
			urls = []string{"http://localhost:9200"}
		}
		var err error
		client, err = elastic.NewClient(
			elastic.SetURL(urls...),
			elastic.SetSniff(false),
		)
		if err != nil {
			return nil, fmt.Errorf("creating elasticsearch client: %w", err)
		}
	}

	index := search.NewIndex(client, sc.IndexPrefix)

	resolver, err := search.NewResolver(index)
	if err != nil {
		client.Stop()
		return nil, fmt.Errorf("creating resolver: %w", err)
	}

	queue := cfg.queue
	if queue == nil {
		var queueOpts []claimqueue.Option
		if sc.QueueCapacity > 0 {
			queueOpts = append(queueOpts, claimqueue.WithCapacity(sc.QueueCapacity))
		}
		queue = claimqueue.New(queueOpts...)
	}

	var writerOpts []search.WriterOption
	if sc.SyncTimeout > 0 {
		writerOpts = append(writerOpts, search.WithSyncTimeout(sc.SyncTimeout))
	}

	s.index = index
	s.writer = search.NewWriter(index, queue, resolver, writerOpts...)
	s.Session = search.NewSession(index, resolver)

	s.startupFuncs = append(s.startupFuncs, func(ctx context.Context) error {
		if err := index.WaitReady(ctx); err != nil {
			client.Stop()
			return err
		}
		if err := index.EnsureIndex(ctx); err != nil {
			client.Stop()
			return fmt.Errorf("ensuring index: %w", err)
		}
		return nil
	})
	s.shutdownFuncs = append(s.shutdownFuncs, func(context.Context) error {
		client.Stop()
		return nil
	})

	return s, nil
}
