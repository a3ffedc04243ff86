package reposvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"libshare/internal/libshare"
	"libshare/internal/model"
)

// RemoteRepoService talks to the repo daemon over its HTTP JSON API.
// Transport faults surface as ErrUpstreamUnavailable so callers can
// distinguish a broken daemon from a missing repo.
type RemoteRepoService struct {
	baseURL string
	secret  string
	client  *http.Client
}

// NewRemoteRepoService creates a client for the daemon at baseURL,
// authenticating with the shared secret.
func NewRemoteRepoService(baseURL, secret string, timeout time.Duration) *RemoteRepoService {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	tr := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     120 * time.Second,
	}
	return &RemoteRepoService{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Transport: tr, Timeout: timeout},
	}
}

type remoteRepo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Owner     string     `json:"owner"`
	OrgID     string     `json:"org_id"`
	DeletedAt *time.Time `json:"deleted_at"`
}

func (r *remoteRepo) toModel() *model.Repo {
	return &model.Repo{ID: r.ID, Name: r.Name, Owner: r.Owner, OrgID: r.OrgID, DeletedAt: r.DeletedAt}
}

func (s *RemoteRepoService) GetRepo(ctx context.Context, repoID string) (*model.Repo, error) {
	var out remoteRepo
	err := s.get(ctx, "/repos/"+url.PathEscape(repoID), nil, &out)
	if err != nil {
		return nil, err
	}
	return out.toModel(), nil
}

func (s *RemoteRepoService) FileExists(ctx context.Context, repoID, path string) (bool, error) {
	return s.exists(ctx, "/repos/"+url.PathEscape(repoID)+"/file", path)
}

func (s *RemoteRepoService) DirExists(ctx context.Context, repoID, path string) (bool, error) {
	return s.exists(ctx, "/repos/"+url.PathEscape(repoID)+"/dir", path)
}

func (s *RemoteRepoService) exists(ctx context.Context, endpoint, path string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	q := url.Values{"path": {path}}
	if err := s.get(ctx, endpoint, q, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (s *RemoteRepoService) CreateRepo(ctx context.Context, name, owner, orgID string) (string, error) {
	in := map[string]string{"name": name, "owner": owner, "org_id": orgID}
	var out remoteRepo
	if err := s.post(ctx, "/repos", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *RemoteRepoService) RemoveRepo(ctx context.Context, repoID string) error {
	return s.do(ctx, http.MethodDelete, "/repos/"+url.PathEscape(repoID), nil, nil, nil)
}

func (s *RemoteRepoService) GetVirtualRepo(ctx context.Context, parentID, path, owner string) (*model.Repo, error) {
	q := url.Values{"path": {path}, "owner": {owner}}
	var out remoteRepo
	if err := s.get(ctx, "/repos/"+url.PathEscape(parentID)+"/virtual", q, &out); err != nil {
		return nil, err
	}
	return out.toModel(), nil
}

func (s *RemoteRepoService) CreateVirtualRepo(ctx context.Context, parentID, path, name, owner string) (string, error) {
	in := map[string]string{"path": path, "name": name, "owner": owner}
	var out remoteRepo
	if err := s.post(ctx, "/repos/"+url.PathEscape(parentID)+"/virtual", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *RemoteRepoService) IsRepoOwner(ctx context.Context, email, repoID string) (bool, error) {
	owner, err := s.GetRepoOwner(ctx, repoID)
	if err != nil {
		return false, err
	}
	return owner == email, nil
}

func (s *RemoteRepoService) GetRepoOwner(ctx context.Context, repoID string) (string, error) {
	var out struct {
		Owner string `json:"owner"`
	}
	if err := s.get(ctx, "/repos/"+url.PathEscape(repoID)+"/owner", nil, &out); err != nil {
		return "", err
	}
	return out.Owner, nil
}

func (s *RemoteRepoService) ListTrash(ctx context.Context, owner string) ([]*model.Repo, error) {
	var q url.Values
	if owner != "" {
		q = url.Values{"owner": {owner}}
	}
	var out []remoteRepo
	if err := s.get(ctx, "/trash", q, &out); err != nil {
		return nil, err
	}
	repos := make([]*model.Repo, 0, len(out))
	for i := range out {
		repos = append(repos, out[i].toModel())
	}
	return repos, nil
}

func (s *RemoteRepoService) RestoreFromTrash(ctx context.Context, repoID string) error {
	return s.post(ctx, "/trash/"+url.PathEscape(repoID)+"/restore", nil, nil)
}

func (s *RemoteRepoService) PurgeFromTrash(ctx context.Context, repoID string) error {
	return s.do(ctx, http.MethodDelete, "/trash/"+url.PathEscape(repoID), nil, nil, nil)
}

func (s *RemoteRepoService) EmptyTrash(ctx context.Context, owner string) error {
	var q url.Values
	if owner != "" {
		q = url.Values{"owner": {owner}}
	}
	return s.do(ctx, http.MethodDelete, "/trash", q, nil, nil)
}

func (s *RemoteRepoService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *RemoteRepoService) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return s.do(ctx, http.MethodGet, endpoint, query, nil, out)
}

func (s *RemoteRepoService) post(ctx context.Context, endpoint string, in, out any) error {
	return s.do(ctx, http.MethodPost, endpoint, nil, in, out)
}

func (s *RemoteRepoService) do(ctx context.Context, method, endpoint string, query url.Values, in, out any) error {
	u := s.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body *bytes.Buffer = &bytes.Buffer{}
	if in != nil {
		if err := json.NewEncoder(body).Encode(in); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secret)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", libshare.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", libshare.ErrNotFound, method, endpoint)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s %s returned %d", libshare.ErrUpstreamUnavailable, method, endpoint, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("repo service: %s %s returned %d", method, endpoint, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
