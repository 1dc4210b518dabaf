package editor

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/entry"
	apperrors "github.com/Adithya-Monish-Kumar-K/club-directory/pkg/errors"
)

// Command is one request on the editor surface. put carries Payload, the
// id-addressed commands carry Target.
type Command struct {
	Cmd     string          `json:"cmd"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Target  *int32          `json:"target,omitempty"`
}

// Result is the reply to a mutating command.
type Result struct {
	OK    int             `json:"ok"`
	Entry entry.PullEntry `json:"entry,omitempty"`
	Key   string          `json:"key,omitempty"`
}

// Execute dispatches cmd for sess. list and pull reply with bare arrays.
func (s *Service) Execute(ctx context.Context, sess Session, cmd Command) (any, error) {
	switch cmd.Cmd {
	case "list":
		return s.List(ctx, sess), nil
	case "pull":
		return s.Pull(ctx, sess), nil
	case "put":
		if len(cmd.Payload) == 0 {
			return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "put requires a payload")
		}
		var en entry.Entry
		if err := json.Unmarshal(cmd.Payload, &en); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "decoding entry: %v", err)
		}
		view, err := s.Put(ctx, sess, en)
		if err != nil {
			return nil, err
		}
		return Result{OK: 1, Entry: view}, nil
	}

	if cmd.Target == nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "%q requires a target", cmd.Cmd)
	}
	id := *cmd.Target
	switch cmd.Cmd {
	case "commit":
		view, err := s.Commit(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		return Result{OK: 1, Entry: view}, nil
	case "discard":
		view, err := s.Discard(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		return Result{OK: 1, Entry: view}, nil
	case "del":
		if err := s.Delete(ctx, sess, id); err != nil {
			return nil, err
		}
		return Result{OK: 1}, nil
	case "genKey":
		key, err := s.GenerateKey(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		return Result{OK: 1, Key: key}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown command %q", cmd.Cmd)
	}
}
