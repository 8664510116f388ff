// Package console wires configuration into the store client, reconciler and
// chunk service shared by the command-line tools, and records audit events
// for the reconciler's destructive operations.
package console

import (
	"context"
	"fmt"
	"time"

	"github.com/hetulpatel/chroma-auditor/internal/audit"
	"github.com/hetulpatel/chroma-auditor/internal/cache"
	"github.com/hetulpatel/chroma-auditor/internal/chroma"
	"github.com/hetulpatel/chroma-auditor/internal/chunks"
	"github.com/hetulpatel/chroma-auditor/internal/config"
	"github.com/hetulpatel/chroma-auditor/internal/kafka"
	"github.com/hetulpatel/chroma-auditor/internal/langflow"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
	"github.com/hetulpatel/chroma-auditor/internal/reconciler"
)

type Console struct {
	Config     config.Config
	Store      *chroma.Client
	Reconciler *reconciler.Reconciler
	Chunks     *chunks.Service
	Langflow   *langflow.Client

	recorder chunks.Recorder
	closers  []func() error
}

// Open builds a Console from cfg. Redis and Kafka are used only when
// configured; failing to reach them is logged, not fatal.
func Open(ctx context.Context, cfg config.Config) (*Console, error) {
	if cfg.ChromaPath == "" {
		return nil, fmt.Errorf("CHROMA_PATH is not set")
	}
	root, err := reconciler.NewStorageRoot(cfg.ChromaPath)
	if err != nil {
		return nil, err
	}
	if !root.HasIndex() {
		logging.Warnf("[console] no %s under %s; orphan detection will run degraded", reconciler.IndexFile, root.Path())
	}

	store := chroma.NewClient(cfg.ChromaURL)
	c := &Console{
		Config:     cfg,
		Store:      store,
		Reconciler: reconciler.New(root, store),
		Langflow:   langflow.New(cfg.Langflow),
	}

	var opts []chunks.Option
	if cfg.RedisAddr != "" {
		lc, err := cache.NewRedisListCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL, "")
		if err != nil {
			logging.Warnf("[console] list cache disabled: %v", err)
		} else {
			opts = append(opts, chunks.WithCache(lc))
			c.closers = append(c.closers, lc.Close)
		}
	}
	if pub := audit.NewPublisher(cfg.KafkaBrokers, cfg.AuditTopic); pub != nil {
		ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := kafka.EnsureTopic(ensureCtx, cfg.KafkaBrokers, cfg.AuditTopic); err != nil {
			logging.Warnf("[console] ensure audit topic warning: %v", err)
		}
		cancel()
		c.recorder = pub
		opts = append(opts, chunks.WithRecorder(pub))
		c.closers = append(c.closers, pub.Close)
	}
	c.Chunks = chunks.NewService(store, c.Reconciler, opts...)
	return c, nil
}

func (c *Console) Close() error {
	var first error
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Console) record(ctx context.Context, ev audit.Event) {
	if c.recorder == nil {
		return
	}
	ev.StorageDir = c.Reconciler.Root().Path()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := c.recorder.Publish(ctx, ev); err != nil {
		logging.Warnf("[console] audit %s: %v", ev.Action, err)
	}
}

// CollectionNames lists collection names in server order.
func (c *Console) CollectionNames(ctx context.Context) ([]string, error) {
	cols, err := c.Store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.Name)
	}
	return names, nil
}

// CollectionInfo is what the inspect views show for one collection.
type CollectionInfo struct {
	Name      string
	ID        string
	Count     int
	SegmentID string
}

func (c *Console) Inspect(ctx context.Context, name string) (CollectionInfo, error) {
	col, err := c.Store.GetCollection(ctx, name)
	if err != nil {
		if chroma.IsNotFound(err) {
			return CollectionInfo{}, fmt.Errorf("%w: %s", reconciler.ErrNotFound, name)
		}
		return CollectionInfo{}, err
	}
	info := CollectionInfo{Name: col.Name, ID: col.ID}
	if info.Count, err = c.Store.Count(ctx, col.ID); err != nil {
		return info, fmt.Errorf("count %s: %w", name, err)
	}
	live, err := c.Reconciler.LiveMapping(ctx)
	if err != nil {
		logging.Warnf("[console] %v", err)
	}
	for _, seg := range live {
		if seg.Collection == name {
			info.SegmentID = seg.SegmentID
			break
		}
	}
	return info, nil
}

func (c *Console) CreateCollection(ctx context.Context, name string) error {
	if _, err := c.Store.CreateCollection(ctx, name, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	logging.Infof("[console] created collection %s", name)
	c.Chunks.Invalidate(ctx, name)
	c.record(ctx, audit.Event{Action: audit.ActionCreateCollection, Collection: name, Targets: []string{name}, Succeeded: 1})
	return nil
}

func (c *Console) DeleteCollections(ctx context.Context, names []string) reconciler.BatchResult {
	res := c.Reconciler.DeleteCollections(ctx, names)
	for _, o := range res.Outcomes {
		if o.MetadataDeleted {
			c.Chunks.Invalidate(ctx, o.Name)
		}
	}
	ev := audit.Event{
		Action:    audit.ActionDeleteCollection,
		Targets:   names,
		Succeeded: res.Succeeded(),
		Failed:    res.Requested - res.Succeeded(),
		Detail:    res.Summary(),
	}
	if len(names) == 1 {
		ev.Collection = names[0]
	}
	c.record(ctx, ev)
	return res
}

func (c *Console) CleanOrphans(ctx context.Context) (reconciler.SweepResult, error) {
	res, err := c.Reconciler.DeleteOrphans(ctx)
	if err != nil {
		return res, err
	}
	detail := ""
	if res.Degraded {
		detail = "index unavailable; nothing deleted"
	}
	c.record(ctx, audit.Event{
		Action:    audit.ActionDeleteOrphans,
		Targets:   res.Deleted,
		Succeeded: res.Count(),
		Failed:    len(res.Failed),
		Detail:    detail,
	})
	return res, nil
}
