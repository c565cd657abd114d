package model

// DefaultPageSize is the number of plans shown on one unsubscribe page.
const DefaultPageSize = 5

// PageOption is one selectable slot of the rendered page.
type PageOption struct {
	Key  string
	Plan string
}

// PaginationState pages through a chat's subscribed plans. The option map is
// only valid for the page returned by the latest Render call.
type PaginationState struct {
	plans    []string
	pageSize int
	current  int
	options  map[string]string
}

func NewPaginationState(plans []string, pageSize int) *PaginationState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	p := &PaginationState{pageSize: pageSize}
	p.Reset(plans)
	return p
}

// Total returns ceil(len(plans)/pageSize).
func (p *PaginationState) Total() int {
	return (len(p.plans) + p.pageSize - 1) / p.pageSize
}

// Current returns the zero based page index.
func (p *PaginationState) Current() int { return p.current }

func (p *PaginationState) Len() int { return len(p.plans) }

func (p *PaginationState) Empty() bool { return len(p.plans) == 0 }

func (p *PaginationState) IsFirst() bool { return p.current == 0 }

func (p *PaginationState) IsLast() bool { return p.current >= p.Total()-1 }

// Page returns the plans on the current page.
func (p *PaginationState) Page() []string {
	if p.Empty() {
		return nil
	}
	start := p.current * p.pageSize
	end := start + p.pageSize
	if end > len(p.plans) {
		end = len(p.plans)
	}
	out := make([]string, end-start)
	copy(out, p.plans[start:end])
	return out
}

// Render rebuilds the option map for the current page and returns its slots
// keyed A, B, C...
func (p *PaginationState) Render() []PageOption {
	page := p.Page()
	p.options = make(map[string]string, len(page))
	out := make([]PageOption, 0, len(page))
	for i, plan := range page {
		key := string(rune('A' + i))
		p.options[key] = plan
		out = append(out, PageOption{Key: key, Plan: plan})
	}
	return out
}

// Resolve looks an option key up in the latest rendered page.
func (p *PaginationState) Resolve(key string) (string, bool) {
	plan, ok := p.options[key]
	return plan, ok
}

// Next moves one page forward. It reports false on the last page.
func (p *PaginationState) Next() bool {
	if p.IsLast() {
		return false
	}
	p.current++
	return true
}

// Prev moves one page back. It reports false on the first page.
func (p *PaginationState) Prev() bool {
	if p.IsFirst() {
		return false
	}
	p.current--
	return true
}

// Reset replaces the plan list, clamps the current page and drops the option map.
func (p *PaginationState) Reset(plans []string) {
	p.plans = append([]string(nil), plans...)
	p.options = nil
	if last := p.Total() - 1; p.current > last {
		p.current = last
	}
	if p.current < 0 {
		p.current = 0
	}
}
