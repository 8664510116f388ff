package chunks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hetulpatel/chroma-auditor/internal/audit"
	"github.com/hetulpatel/chroma-auditor/internal/chroma"
	"github.com/hetulpatel/chroma-auditor/internal/logging"
	"github.com/hetulpatel/chroma-auditor/internal/reconciler"
)

// AddTag sets key=value on each selected chunk. The fileset key is a set:
// value joins the existing names, sorted and pipe separated.
func (s *Service) AddTag(ctx context.Context, collection string, ids []string, key, value string) error {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" || value == "" {
		return fmt.Errorf("metadata key and value are required")
	}
	if len(ids) == 0 {
		return ErrNoSelection
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return err
	}
	cs, err := s.fetch(ctx, col, chroma.GetRequest{IDs: ids, Include: []string{"metadatas"}})
	if err != nil {
		return err
	}

	req := chroma.UpdateRequest{}
	for _, c := range cs {
		meta := c.Metadata
		if key == KeyFileset {
			set := map[string]struct{}{value: {}}
			for _, fs := range c.Filesets() {
				set[fs] = struct{}{}
			}
			meta[KeyFileset] = strings.Join(sortedKeys(set), filesetSep)
		} else {
			meta[key] = value
		}
		req.IDs = append(req.IDs, c.ID)
		req.Metadatas = append(req.Metadatas, meta)
	}
	if len(req.IDs) == 0 {
		return nil
	}
	if err := s.store.Update(ctx, col.ID, req); err != nil {
		return fmt.Errorf("update metadata in %s: %w", collection, err)
	}
	s.Invalidate(ctx, collection)
	logging.Infof("[chunks] tagged %d chunks in %s with %s=%s", len(req.IDs), collection, key, value)
	return nil
}

// RemoveTag removes value from key on each selected chunk. For a
// pipe-joined value only that member goes; the key is dropped when nothing
// is left or when a single value equals value. Dropping a key sends a null
// through the store's update call.
func (s *Service) RemoveTag(ctx context.Context, collection string, ids []string, key, value string) (int, error) {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return 0, fmt.Errorf("metadata key is required")
	}
	if len(ids) == 0 {
		return 0, ErrNoSelection
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	cs, err := s.fetch(ctx, col, chroma.GetRequest{IDs: ids, Include: []string{"metadatas"}})
	if err != nil {
		return 0, err
	}

	req := chroma.UpdateRequest{}
	for _, c := range cs {
		current, ok := c.Metadata[key]
		if !ok {
			continue
		}
		str, isString := current.(string)
		switch {
		case isString && strings.Contains(str, filesetSep):
			parts := splitFilesets(str)
			var kept []string
			for _, p := range parts {
				if p != value {
					kept = append(kept, p)
				}
			}
			if len(kept) == len(parts) {
				continue
			}
			if len(kept) == 0 {
				c.Metadata[key] = nil
			} else {
				c.Metadata[key] = strings.Join(kept, filesetSep)
			}
		case fmt.Sprint(current) == value:
			c.Metadata[key] = nil
		default:
			continue
		}
		req.IDs = append(req.IDs, c.ID)
		req.Metadatas = append(req.Metadatas, c.Metadata)
	}
	if len(req.IDs) == 0 {
		return 0, nil
	}
	if err := s.store.Update(ctx, col.ID, req); err != nil {
		return 0, fmt.Errorf("remove metadata in %s: %w", collection, err)
	}
	s.Invalidate(ctx, collection)
	logging.Infof("[chunks] removed %s=%s from %d chunks in %s", key, value, len(req.IDs), collection)
	return len(req.IDs), nil
}

// DeleteEntries deletes the selected chunks. When the distinct selection
// names every entry of the collection it is reset instead of emptied entry
// by entry.
func (s *Service) DeleteEntries(ctx context.Context, collection string, ids []string) (string, error) {
	ids = distinct(ids)
	if len(ids) == 0 {
		return "No entries selected", ErrNoSelection
	}
	col, err := s.collection(ctx, collection)
	if err != nil {
		return "", err
	}
	covers, total, err := s.coversCollection(ctx, col, ids)
	if err != nil {
		return "", err
	}
	defer s.Invalidate(ctx, collection)

	ev := audit.Event{Collection: collection, Targets: ids, At: time.Now().UTC()}
	if covers && s.resetter != nil {
		logging.Infof("[chunks] selection covers all %d entries of %s; resetting", total, collection)
		status, err := s.resetter.ResetCollection(ctx, collection, ids)
		ev.Action = audit.ActionResetCollection
		ev.Detail = status.String()
		if err != nil {
			ev.Failed = len(ids)
			s.record(ctx, ev)
			return "", err
		}
		ev.Succeeded = len(ids)
		s.record(ctx, ev)
		if status == reconciler.Reset {
			return "Collection has been completely reset (deleted and recreated)", nil
		}
		return "Deleted documents using standard method", nil
	}

	ev.Action = audit.ActionDeleteEntries
	if err := s.store.Delete(ctx, col.ID, chroma.DeleteRequest{IDs: ids}); err != nil {
		ev.Failed = len(ids)
		s.record(ctx, ev)
		return "", fmt.Errorf("delete entries from %s: %w", collection, err)
	}
	ev.Succeeded = len(ids)
	s.record(ctx, ev)
	return fmt.Sprintf("Deleted %d documents", len(ids)), nil
}

// coversCollection reports whether ids name every entry of col. Ids the
// collection does not hold do not count toward coverage.
func (s *Service) coversCollection(ctx context.Context, col *chroma.Collection, ids []string) (bool, int, error) {
	total, err := s.store.Count(ctx, col.ID)
	if err != nil {
		return false, 0, fmt.Errorf("count %s: %w", col.Name, err)
	}
	if len(ids) < total {
		return false, total, nil
	}
	resp, err := s.store.Get(ctx, col.ID, chroma.GetRequest{IDs: ids, Include: []string{"metadatas"}})
	if err != nil {
		return false, total, fmt.Errorf("get entries of %s: %w", col.Name, err)
	}
	return len(distinct(resp.IDs)) == total, total, nil
}

func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// SelectIDs returns the ids of the chunks at the given row positions,
// ignoring positions out of range. Duplicates are dropped.
func SelectIDs(cs []Chunk, rows []int) []string {
	sorted := append([]int(nil), rows...)
	sort.Ints(sorted)
	seen := map[int]bool{}
	var out []string
	for _, r := range sorted {
		if r < 0 || r >= len(cs) || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, cs[r].ID)
	}
	return out
}
