package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sami-chanane/thesis-pizza-app/pkg/artifact"
	"github.com/sami-chanane/thesis-pizza-app/pkg/delivery"
	"github.com/sami-chanane/thesis-pizza-app/pkg/model"
)

const (
	pathTrigger  = "%s/api/trigger"
	pathRuns     = "%s/api/runs"
	pathRun      = "%s/api/run"
	pathRollback = "%s/api/rollback"
	pathStatus   = "%s/api/status"
	pathUser     = "%s/api/user"
	pathUsers    = "%s/api/users"
)

type client struct {
	client *http.Client
	addr   string
}

// New returns a client at the specified url.
func New(uri string) Client {
	return &client{http.DefaultClient, strings.TrimSuffix(uri, "/")}
}

// NewClient returns a client at the specified url.
func NewClient(uri string, cli *http.Client) Client {
	return &client{cli, strings.TrimSuffix(uri, "/")}
}

// SetClient sets the http.Client.
func (c *client) SetClient(client *http.Client) {
	c.client = client
}

// SetAddress sets the server address.
func (c *client) SetAddress(addr string) {
	c.addr = addr
}

// TriggerPost starts a pipeline run for a commit
func (c *client) TriggerPost(trigger *delivery.Trigger) (string, error) {
	uri := fmt.Sprintf(pathTrigger, c.addr)
	result := new(map[string]interface{})
	err := c.post(uri, trigger, result)
	if err != nil {
		return "", err
	}
	res := *result
	return res["id"].(string), nil
}

// RunsGet returns the pipeline runs within the given constraints
func (c *client) RunsGet(
	repo, branch string,
	event *delivery.GitEvent,
	sha string,
	status string,
	limit, offset int,
) ([]*delivery.Run, error) {
	uri := fmt.Sprintf(pathRuns, c.addr)

	var params []string

	if limit != 0 {
		params = append(params, fmt.Sprintf("limit=%d", limit))
	}
	if offset != 0 {
		params = append(params, fmt.Sprintf("offset=%d", offset))
	}
	if repo != "" {
		params = append(params, fmt.Sprintf("repo=%s", repo))
	}
	if branch != "" {
		params = append(params, fmt.Sprintf("branch=%s", branch))
	}
	if event != nil {
		params = append(params, fmt.Sprintf("event=%s", event))
	}
	if sha != "" {
		params = append(params, fmt.Sprintf("sha=%s", sha))
	}
	if status != "" {
		params = append(params, fmt.Sprintf("status=%s", status))
	}

	var paramsStr string
	if len(params) > 0 {
		paramsStr = strings.Join(params, "&")
		paramsStr = "?" + paramsStr
	}

	body, err := c.open(uri+paramsStr, "GET", nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	var out []*delivery.Run
	err = json.Unmarshal(bodyBytes, &out)
	if err != nil {
		return nil, err
	}

	if out == nil {
		return []*delivery.Run{}, nil
	}

	return out, err
}

// RunGet returns the run with the given id
func (c *client) RunGet(id string) (*delivery.Run, error) {
	uri := fmt.Sprintf(pathRun, c.addr)

	run := new(delivery.Run)
	err := c.get(uri+"/"+id, run)
	if err != nil {
		return nil, err
	}

	return run, nil
}

// RunArtifactsGet lists the artifact files of a run
func (c *client) RunArtifactsGet(id string) ([]artifact.Artifact, error) {
	uri := fmt.Sprintf(pathRun, c.addr)

	var files []artifact.Artifact
	err := c.get(uri+"/"+id+"/artifacts", &files)
	if err != nil {
		return nil, err
	}

	if files == nil {
		return []artifact.Artifact{}, nil
	}

	return files, nil
}

// RunArtifactGet downloads one artifact file of a run
func (c *client) RunArtifactGet(id string, name string) ([]byte, error) {
	uri := fmt.Sprintf(pathRun, c.addr) + "/" + id + "/artifact/" + name

	body, err := c.open(uri, "GET", nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return io.ReadAll(body)
}

// RollbackPost redeploys the image of an earlier successful run
func (c *client) RollbackPost(repo string, runID string) (string, error) {
	uri := fmt.Sprintf(pathRollback+"?repo=%s&runId=%s", c.addr, url.QueryEscape(repo), url.QueryEscape(runID))
	result := new(map[string]interface{})
	err := c.post(uri, nil, result)
	if err != nil {
		return "", err
	}
	res := *result
	return res["id"].(string), nil
}

// StatusGet returns the queue depth and the latest run
func (c *client) StatusGet() (*ServerStatus, error) {
	uri := fmt.Sprintf(pathStatus, c.addr)

	status := new(ServerStatus)
	err := c.get(uri, status)
	if err != nil {
		return nil, err
	}

	return status, nil
}

// UserGet returns the user with the given login
func (c *client) UserGet(login string) (*model.User, error) {
	uri := fmt.Sprintf(pathUser, c.addr)

	user := new(model.User)
	err := c.get(uri+"/"+login, user)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UsersGet returns all users
func (c *client) UsersGet() ([]*model.User, error) {
	uri := fmt.Sprintf(pathUsers, c.addr)

	var users []*model.User
	err := c.get(uri, &users)
	if err != nil {
		return nil, err
	}

	if users == nil {
		return []*model.User{}, nil
	}

	return users, nil
}

// UserPost creates a user, the returned user carries its api token
func (c *client) UserPost(login string) (*model.User, error) {
	uri := fmt.Sprintf(pathUser, c.addr)
	createdUser := new(model.User)
	err := c.post(uri, login, createdUser)
	if err != nil {
		return nil, err
	}
	return createdUser, nil
}

// UserDelete removes the user with the given login
func (c *client) UserDelete(login string) error {
	uri := fmt.Sprintf(pathUser, c.addr)
	return c.delete(uri + "/" + login)
}

func (c *client) get(rawURL string, out interface{}) error {
	return c.do(rawURL, "GET", nil, out)
}

func (c *client) post(rawURL string, in, out interface{}) error {
	return c.do(rawURL, "POST", in, out)
}

func (c *client) delete(rawURL string) error {
	return c.do(rawURL, "DELETE", nil, nil)
}

func (c *client) do(rawURL, method string, in, out interface{}) error {
	body, err := c.open(rawURL, method, in)
	if err != nil {
		return err
	}
	defer body.Close()

	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(bodyBytes, &out)
}

func (c *client) open(rawURL, method string, in interface{}) (io.ReadCloser, error) {
	uri, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(method, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	if in != nil {
		decoded, decodeErr := json.Marshal(in)
		if decodeErr != nil {
			return nil, decodeErr
		}
		buf := bytes.NewBuffer(decoded)
		req.Body = io.NopCloser(buf)
		req.ContentLength = int64(len(decoded))
		req.Header.Set("Content-Length", strconv.Itoa(len(decoded)))
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode > http.StatusPartialContent {
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(out))
	}
	return resp.Body, nil
}
