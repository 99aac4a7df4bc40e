package model

// State is the lifecycle position of a URL within a crawl.
type State string

const (
	// StatePending means a request was issued and no result has arrived yet.
	StatePending State = "pending"
	// StateResolved means a response was parsed and its status recorded.
	StateResolved State = "resolved"
	// StateFailed means the request never produced a usable response.
	StateFailed State = "failed"
)

// Outcome is the value stored for each URL in a VisitedMap.
type Outcome struct {
	// State is the current lifecycle state.
	State State `json:"state"`

	// StatusCode is set only when State is StateResolved.
	StatusCode int `json:"status_code,omitempty"`

	// Err holds the failure reason when State is StateFailed.
	Err string `json:"error,omitempty"`
}

// VisitedMap records every URL for which a request was issued.
//
// Keys are canonical URL strings. A key enters the map at most once, as
// pending, and is never removed. Iteration order is insertion order.
// VisitedMap is not safe for concurrent use; it belongs to the single
// control thread of one crawl.
type VisitedMap struct {
	outcomes map[string]Outcome
	order    []string
}

// NewVisitedMap creates an empty VisitedMap.
func NewVisitedMap() *VisitedMap {
	return &VisitedMap{
		outcomes: make(map[string]Outcome),
		order:    make([]string, 0),
	}
}

// MarkPending records url as pending.
// It returns false, leaving the map untouched, when url is already present.
func (v *VisitedMap) MarkPending(url string) bool {
	if _, ok := v.outcomes[url]; ok {
		return false
	}
	v.outcomes[url] = Outcome{State: StatePending}
	v.order = append(v.order, url)
	return true
}

// Resolve records the status code of a pending url.
// Unknown urls and urls that already left the pending state are ignored.
func (v *VisitedMap) Resolve(url string, statusCode int) {
	if o, ok := v.outcomes[url]; ok && o.State == StatePending {
		v.outcomes[url] = Outcome{State: StateResolved, StatusCode: statusCode}
	}
}

// Fail marks a pending url as failed.
// Unknown urls and urls that already left the pending state are ignored.
func (v *VisitedMap) Fail(url string, err error) {
	o, ok := v.outcomes[url]
	if !ok || o.State != StatePending {
		return
	}
	o = Outcome{State: StateFailed}
	if err != nil {
		o.Err = err.Error()
	}
	v.outcomes[url] = o
}

// Has reports whether url was ever requested.
func (v *VisitedMap) Has(url string) bool {
	_, ok := v.outcomes[url]
	return ok
}

// Get returns the outcome for url.
func (v *VisitedMap) Get(url string) (Outcome, bool) {
	o, ok := v.outcomes[url]
	return o, ok
}

// Len returns the number of urls in the map.
func (v *VisitedMap) Len() int {
	return len(v.order)
}

// Keys returns all urls in insertion order.
func (v *VisitedMap) Keys() []string {
	keys := make([]string, len(v.order))
	copy(keys, v.order)
	return keys
}

// PendingCount returns the number of urls still waiting for a result.
func (v *VisitedMap) PendingCount() int {
	n := 0
	for _, o := range v.outcomes {
		if o.State == StatePending {
			n++
		}
	}
	return n
}
