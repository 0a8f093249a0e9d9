package accept

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DirSource reads acceptance mail bodies from files dropped into a directory.
// The file name is the message id; acking removes the file.
type DirSource struct {
	Dir string
}

func (s *DirSource) Messages(_ context.Context) ([]Message, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mail directory: %w", err)
	}

	var msgs []Message
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := os.ReadFile(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read mail %s: %w", e.Name(), err)
		}
		msgs = append(msgs, Message{ID: e.Name(), Body: string(body)})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
	return msgs, nil
}

func (s *DirSource) Ack(_ context.Context, id string) error {
	return os.Remove(filepath.Join(s.Dir, id))
}
