package mech

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// FindLink returns the single link selected by the criteria: the ordinal-th
// (1-based, default first) among those matching, or nil when fewer exist.
func (s *Session) FindLink(c Criteria) *Link {
	if s.page == nil {
		return nil
	}
	if c.Ordinal == OrdinalAll {
		s.warn(`FindLink cannot take n="all"; use FindAllLinks`)
		return nil
	}
	link, ok := findMatch(s.page.links, c.matchLink, c.Ordinal)
	if !ok {
		return nil
	}
	return link
}

// FindAllLinks returns every link matching the criteria, in document order.
// The result is empty, never nil, when nothing matches.
func (s *Session) FindAllLinks(c Criteria) []*Link {
	if s.page == nil {
		return []*Link{}
	}
	return findMatches(s.page.links, c.matchLink)
}

// FindLinkWith is the option-bag variant of FindLink used by scripts.
// Unknown keys are warned about and ignored for filtering.
func (s *Session) FindLinkWith(opts map[string]any) (*Link, error) {
	c, err := s.criteriaFrom(opts)
	if err != nil {
		return nil, err
	}
	return s.FindLink(c), nil
}

// FollowLink resolves one link via the criteria and fetches it, pushing the
// current state onto the history stack first. When no link matches, it warns
// and returns ErrLinkNotFound with no side effects: no push, no fetch.
func (s *Session) FollowLink(ctx context.Context, c Criteria) error {
	if s.page == nil {
		s.warn("FollowLink called before any page was fetched")
		return ErrNoPage
	}
	if c.Ordinal == OrdinalAll {
		s.warn(`FollowLink cannot take n="all"; it follows a single link`)
		return ErrInvalidCriteria
	}

	link, ok := findMatch(s.page.links, c.matchLink, c.Ordinal)
	if !ok {
		s.warn("No link matched the follow criteria")
		return ErrLinkNotFound
	}

	target, err := s.page.base.Parse(link.URL)
	if err != nil {
		return fmt.Errorf("failed to resolve link URL %q: %w", link.URL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %q: %w", target.String(), err)
	}

	s.pushHistory()
	return s.executeRequest(ctx, req)
}

// FollowLinkWith is the option-bag variant of FollowLink.
func (s *Session) FollowLinkWith(ctx context.Context, opts map[string]any) error {
	c, err := s.criteriaFrom(opts)
	if err != nil {
		return err
	}
	return s.FollowLink(ctx, c)
}

// criteriaFrom validates an option bag, warning once per unrecognized key.
func (s *Session) criteriaFrom(opts map[string]any) (Criteria, error) {
	c, unknown, err := ParseCriteria(opts)
	for _, key := range unknown {
		s.warn("Unknown criteria key ignored", zap.String("key", key))
	}
	return c, err
}
