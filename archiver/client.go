package archiver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fkie-cad/ahkdump"
	"github.com/targodan/go-errors"
)

// RemoteStorage is an ahkdump.ScriptStorage uploading every script to a
// Server. Closing it closes the run on the server.
type RemoteStorage struct {
	url    string
	client *http.Client
	runID  string

	mux    sync.Mutex
	closed bool
}

// NewRemoteStorage creates a new run named name on the server.
func NewRemoteStorage(server, name string) (*RemoteStorage, error) {
	s := &RemoteStorage{
		url:    fmt.Sprintf("%s/v1", strings.TrimRight(server, "/")),
		client: &http.Client{},
	}

	body, err := json.Marshal(&CreateRunRequest{Name: name})
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Post(s.url+"/run", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Errorf("could not create run on archiver server, reason: %w", err)
	}
	data, err := parseResponse(resp)
	if err != nil {
		return nil, errors.Errorf("could not create run on archiver server, reason: %w", err)
	}
	runID, ok := data["runID"].(string)
	if !ok || runID == "" {
		return nil, errors.New("invalid response body, missing run ID")
	}
	s.runID = runID
	return s, nil
}

// RunID returns the ID the server assigned to the run.
func (s *RemoteStorage) RunID() string {
	return s.runID
}

func (s *RemoteStorage) put(endpoint string, data []byte) error {
	req, err := http.NewRequest(http.MethodPut, s.url+endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	_, err = parseResponse(resp)
	return err
}

// Upload stores an arbitrary file of the run.
func (s *RemoteStorage) Upload(name string, data []byte) error {
	s.mux.Lock()
	closed := s.closed
	s.mux.Unlock()
	if closed {
		return errors.New("remote storage is already closed")
	}

	err := s.put(fmt.Sprintf("/run/%s/%s", s.runID, url.PathEscape(name)), data)
	if err != nil {
		return errors.Errorf("could not upload \"%s\", reason: %w", name, err)
	}
	return nil
}

func (s *RemoteStorage) Store(script *ahkdump.ExtractedScript) error {
	return s.Upload(script.Filename(), []byte(script.Content))
}

func (s *RemoteStorage) Hint() string {
	return fmt.Sprintf("scripts are uploaded to run %s at %s", s.runID, s.url)
}

func (s *RemoteStorage) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	err := s.put(fmt.Sprintf("/run/%s", s.runID), nil)
	if err != nil {
		return errors.Errorf("could not close run on archiver server, reason: %w", err)
	}
	return nil
}

func parseResponse(resp *http.Response) (map[string]interface{}, error) {
	defer resp.Body.Close()

	data := make(map[string]interface{})
	err := json.NewDecoder(io.LimitReader(resp.Body, 1024*1024)).Decode(&data)
	if err != nil {
		return nil, errors.Errorf("unexpected response with http status %s", resp.Status)
	}
	errTxt, ok := data["error"]
	if !ok {
		return nil, errors.New("invalid response body")
	}
	if errTxt != nil {
		errString, ok := errTxt.(string)
		if !ok {
			return nil, errors.New("invalid response body")
		}
		return nil, errors.New(errString)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected http status: %s", resp.Status)
	}
	return data, nil
}
