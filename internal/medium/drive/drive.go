// Package drive is a medium over one Google Drive folder.
//
// Objects are the folder's files, identified by Drive file id. Content is the
// file media; fields are the file's appProperties. Calls failing with HTTP 5xx
// or 429 are retried with backoff.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/danmuck/covertfs/internal/medium"
	"github.com/danmuck/covertfs/internal/retry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultAttempts = 3

type Store struct {
	srv    *drivev3.Service
	folder string
	policy retry.Policy
	logger zerolog.Logger
}

// New wraps an authenticated Drive service.
func New(srv *drivev3.Service, folderID string) *Store {
	s := &Store{
		srv:    srv,
		folder: folderID,
		logger: log.With().Str("component", "drive").Str("folder", folderID).Logger(),
	}
	s.policy = retry.Policy{
		Backoff:     retry.DefaultBackoff(),
		MaxAttempts: DefaultAttempts,
		Retryable:   s.retryable,
	}
	return s
}

// Open authenticates with a service-account or authorized-user credentials
// file.
func Open(ctx context.Context, credentialsFile, folderID string) (*Store, error) {
	srv, err := drivev3.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drivev3.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}
	return New(srv, folderID), nil
}

func (s *Store) retryable(err error) bool {
	if !transient(err) {
		return false
	}
	s.logger.Warn().Err(err).Msg("transient drive error; retrying")
	return true
}

func transient(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code >= 500 || gerr.Code == http.StatusTooManyRequests
}

func mapErr(id string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", medium.ErrNotFound, id)
	}
	return err
}

func (s *Store) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, s.policy, fn)
}

func listQuery(folder string) string {
	return fmt.Sprintf("'%s' in parents and trashed = false", strings.ReplaceAll(folder, "'", `\'`))
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	var ids []string
	token := ""
	for {
		var page *drivev3.FileList
		err := s.do(ctx, func(ctx context.Context) error {
			call := s.srv.Files.List().
				Q(listQuery(s.folder)).
				Fields("nextPageToken, files(id)").
				PageSize(1000).
				Context(ctx)
			if token != "" {
				call = call.PageToken(token)
			}
			var err error
			page, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list folder: %w", err)
		}
		for _, f := range page.Files {
			ids = append(ids, f.Id)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) ReadContent(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.do(ctx, func(ctx context.Context) error {
		resp, err := s.srv.Files.Get(id).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, mapErr(id, err)
	}
	return data, nil
}

func (s *Store) WriteContent(ctx context.Context, id string, data []byte) error {
	err := s.do(ctx, func(ctx context.Context) error {
		_, err := s.srv.Files.Update(id, &drivev3.File{}).
			Media(bytes.NewReader(data)).
			Fields("id").
			Context(ctx).
			Do()
		return err
	})
	return mapErr(id, err)
}

func (s *Store) ReadFields(ctx context.Context, id string) (map[string]string, error) {
	var f *drivev3.File
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		f, err = s.srv.Files.Get(id).Fields("appProperties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, mapErr(id, err)
	}
	out := make(map[string]string, len(f.AppProperties))
	for k, v := range f.AppProperties {
		out[k] = v
	}
	return out, nil
}

// fieldsPatch builds the metadata update: removed keys are sent as null
// appProperties entries.
func fieldsPatch(set map[string]string, remove []string) *drivev3.File {
	f := &drivev3.File{AppProperties: make(map[string]string, len(set))}
	for k, v := range set {
		f.AppProperties[k] = v
	}
	for _, k := range remove {
		if _, ok := set[k]; ok {
			continue
		}
		f.NullFields = append(f.NullFields, "AppProperties."+k)
	}
	return f
}

func (s *Store) WriteFields(ctx context.Context, id string, set map[string]string, remove []string) error {
	for k := range set {
		if err := medium.ValidateFieldName(k); err != nil {
			return err
		}
	}
	if len(set) == 0 && len(remove) == 0 {
		return nil
	}
	patch := fieldsPatch(set, remove)
	err := s.do(ctx, func(ctx context.Context) error {
		_, err := s.srv.Files.Update(id, patch).Fields("id").Context(ctx).Do()
		return err
	})
	return mapErr(id, err)
}
