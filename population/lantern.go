package population

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/tilelib/tile"
	"v.io/x/lib/vlog"
)

// LanternVersion is the lantern server version the client speaks to.
const LanternVersion = "0.0.3"

// maxElementsExceeded is the message lantern returns when a request asks for
// too many calls.
const maxElementsExceeded = "max elements exceeded"

type lanternRequest struct {
	Type     string
	Dataset  string   `json:",omitempty"`
	Note     string   `json:",omitempty"`
	SampleId []string // nolint: golint
	Position []string `json:",omitempty"`
}

type lanternResponse struct {
	Type           string
	Message        string
	LanternVersion string
	SampleId       []string // nolint: golint
	Result         map[string][2][]string
}

// LanternClient is a Source backed by a lantern server. A request may not
// span more than one path; wrap the client in a PathSplitter for that.
type LanternClient struct {
	// URL is the lantern endpoint, e.g. "http://localhost:8080".
	URL string
	// Dataset names the lantern dataset. Empty means "all".
	Dataset string
	Layout  tile.Layout
	// Client issues the requests. Nil means http.DefaultClient.
	Client *http.Client
	// MaxSplits bounds how many times a range is halved after lantern
	// reports that it holds too many calls.
	MaxSplits int
	// Version is the server version the client requires. Empty means
	// LanternVersion.
	Version string

	mu     sync.Mutex
	humans []string
}

// NewLanternClient creates a client for the server at url.
func NewLanternClient(url string, layout tile.Layout) *LanternClient {
	return &LanternClient{URL: url, Dataset: "all", Layout: layout, MaxSplits: 16}
}

func (c *LanternClient) post(ctx context.Context, req lanternRequest) (lanternResponse, error) {
	var resp lanternResponse
	body, err := json.Marshal(req)
	if err != nil {
		return resp, errors.E(err, "lantern: encode request")
	}
	hreq, err := http.NewRequest("POST", c.URL, bytes.NewReader(body))
	if err != nil {
		return resp, errors.E(errors.Invalid, err, "lantern: url", c.URL)
	}
	hreq.Header.Set("Content-Type", "application/json")
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	vlog.VI(1).Infof("lantern: POST %s %s", c.URL, body)
	hresp, err := client.Do(hreq.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return resp, errors.E(errors.Canceled, ctx.Err(), "lantern")
		}
		return resp, errors.E(errors.Net, err, "lantern: not responding at", c.URL)
	}
	defer hresp.Body.Close() // nolint: errcheck
	data, err := ioutil.ReadAll(hresp.Body)
	if err != nil {
		return resp, errors.E(errors.Net, err, "lantern: read response")
	}
	if hresp.StatusCode != http.StatusOK {
		return resp, errors.E(errors.Unavailable,
			fmt.Sprintf("lantern: %s: %s", hresp.Status, strings.TrimSpace(string(data))))
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, errors.E(errors.Invalid, err, "lantern: decode response")
	}
	want := c.Version
	if want == "" {
		want = LanternVersion
	}
	if resp.LanternVersion != want {
		return resp, errors.E(errors.NotSupported,
			fmt.Sprintf("lantern: server version %q, want %q", resp.LanternVersion, want))
	}
	return resp, nil
}

// Humans returns the sorted sample names known to the server. The list is
// cached after the first successful request; a failed request is retried by
// the next call.
func (c *LanternClient) Humans(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.humans != nil {
		return c.humans, nil
	}
	resp, err := c.post(ctx, lanternRequest{Type: "system-info", SampleId: []string{}})
	if err != nil {
		return nil, err
	}
	if resp.Type != "success" {
		return nil, errors.E(errors.Unavailable, "lantern: system-info:", resp.Message)
	}
	humans := append([]string{}, resp.SampleId...)
	sort.Strings(humans)
	c.humans = humans
	return humans, nil
}

// positionQuery renders the lantern range "path.version.step+count".
func (c *LanternClient) positionQuery(first, last tile.Position) string {
	l := c.Layout
	return fmt.Sprintf("%0*x.%0*x.%0*x+%x",
		l.PathDigits, l.Path(first), l.VersionDigits, l.Version(first), l.StepDigits, l.Step(first),
		uint64(last-first)+1)
}

// Calls implements Source.
func (c *LanternClient) Calls(ctx context.Context, first, last tile.Position) (Calls, error) {
	if last < first {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("lantern: last position %#x is before first %#x", uint64(last), uint64(first)))
	}
	if !c.Layout.SamePath(first, last) {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("lantern: range %#x-%#x crosses a path", uint64(first), uint64(last)))
	}
	humans, err := c.Humans(ctx)
	if err != nil {
		return nil, err
	}
	calls, err := c.fetch(ctx, first, last, c.MaxSplits)
	if err != nil {
		return nil, err
	}
	got := calls.Humans()
	if !equalStrings(got, humans) {
		return nil, Unexpected("lantern returned %d humans for %s, want %d",
			len(got), c.positionQuery(first, last), len(humans))
	}
	for name, phases := range calls {
		for i := range phases {
			if err := SortPhase(c.Layout, phases[i]); err != nil {
				return nil, errors.E(err, fmt.Sprintf("lantern: human %s phase %d", name, i))
			}
		}
	}
	return calls, nil
}

func (c *LanternClient) fetch(ctx context.Context, first, last tile.Position, splits int) (Calls, error) {
	query := c.positionQuery(first, last)
	resp, err := c.post(ctx, lanternRequest{
		Type:     "sample-position-variant",
		Dataset:  c.Dataset,
		Note:     "phased calls of every human over a position range",
		SampleId: []string{},
		Position: []string{query},
	})
	if err != nil {
		return nil, err
	}
	switch {
	case resp.Type == "success":
		calls := make(Calls, len(resp.Result))
		for name, phases := range resp.Result {
			calls[name] = phases
		}
		return calls, nil
	case strings.Contains(resp.Message, maxElementsExceeded) && last > first && splits > 0:
		mid := first + (last-first)/2
		vlog.VI(1).Infof("lantern: %s: %s, splitting at %#x", query, resp.Message, uint64(mid))
		lo, err := c.fetch(ctx, first, mid, splits-1)
		if err != nil {
			return nil, err
		}
		hi, err := c.fetch(ctx, mid+1, last, splits-1)
		if err != nil {
			return nil, err
		}
		return concatCalls(lo, hi)
	default:
		return nil, errors.E(errors.Unavailable, fmt.Sprintf("lantern: %s: %s", query, resp.Message))
	}
}

// concatCalls appends the calls of b after those of a. Both must hold the
// same humans.
func concatCalls(a, b Calls) (Calls, error) {
	if len(a) == 0 {
		return b, nil
	}
	if !equalStrings(a.Humans(), b.Humans()) {
		return nil, Unexpected("population changed between requests: %d humans then %d", len(a), len(b))
	}
	r := make(Calls, len(a))
	for name, pa := range a {
		pb := b[name]
		var out Phases
		for i := range out {
			out[i] = append(append([]string(nil), pa[i]...), pb[i]...)
		}
		r[name] = out
	}
	return r, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
