package squaresync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/cmlabs-hris/timeclock-sync/internal/domain/employee"
	"github.com/cmlabs-hris/timeclock-sync/internal/domain/mapping"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// candidate is an internal employee of either kind.
type candidate struct {
	id       string
	name     string
	key      string
	isTipper bool
}

type matchResult struct {
	candidate  *candidate
	confidence mapping.Confidence
}

// strategy reports the first candidate it accepts for key.
type strategy struct {
	confidence mapping.Confidence
	pool       []candidate
	accept     func(worker, candidate string) bool
}

// matcher evaluates strategies in order and stops at the first hit.
type matcher struct {
	strategies []strategy
}

func newMatcher(employees []employee.Employee, tipEmployees []employee.TipEmployee) *matcher {
	authPool := make([]candidate, 0, len(employees))
	for _, e := range employees {
		authPool = append(authPool, candidate{id: e.ID, name: e.FullName, key: normalizeName(e.FullName)})
	}
	tipPool := make([]candidate, 0, len(tipEmployees))
	for _, te := range tipEmployees {
		tipPool = append(tipPool, candidate{id: te.ID, name: te.FullName, key: normalizeName(te.FullName), isTipper: true})
	}

	return &matcher{strategies: []strategy{
		{confidence: mapping.ConfidenceExact, pool: authPool, accept: exactMatch},
		{confidence: mapping.ConfidenceExact, pool: tipPool, accept: exactMatch},
		{confidence: mapping.ConfidencePartial, pool: authPool, accept: partialMatch},
		{confidence: mapping.ConfidencePartial, pool: tipPool, accept: partialMatch},
	}}
}

func (m *matcher) match(workerName string) matchResult {
	key := normalizeName(workerName)
	if key == "" {
		return matchResult{confidence: mapping.ConfidenceNone}
	}

	for _, st := range m.strategies {
		for i := range st.pool {
			c := &st.pool[i]
			if c.key != "" && st.accept(key, c.key) {
				return matchResult{candidate: c, confidence: st.confidence}
			}
		}
	}
	return matchResult{confidence: mapping.ConfidenceNone}
}

func exactMatch(worker, candidate string) bool {
	return worker == candidate
}

func partialMatch(worker, candidate string) bool {
	return strings.Contains(worker, candidate) || strings.Contains(candidate, worker)
}

// normalizeName case-folds, strips diacritics and collapses whitespace.
// Transformers are stateful, so each call builds its own.
func normalizeName(name string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripAccents, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// SuggestMappings implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) SuggestMappings(ctx context.Context, companyID string) ([]mapping.Suggestion, error) {
	client, conn, err := s.GetAuthenticatedClient(ctx, companyID)
	if err != nil {
		return nil, err
	}

	locationID := ""
	if conn.HasLocation() {
		locationID = *conn.LocationID
	}

	members, err := client.ListTeamMembers(ctx, locationID)
	if err != nil {
		return nil, err
	}

	employees, err := s.employees.ListActiveByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	tipEmployees, err := s.employees.ListTipEmployeesByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	existing, err := s.mappings.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	mapped := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		mapped[m.SquareTeamMemberID] = struct{}{}
	}

	matcher := newMatcher(employees, tipEmployees)
	suggestions := make([]mapping.Suggestion, 0)

	for _, member := range members {
		if _, ok := mapped[member.ID]; ok {
			continue
		}

		name := member.DisplayName()
		result := matcher.match(name)

		proposal := mapping.EmployeeMapping{
			CompanyID:            companyID,
			SquareTeamMemberID:   member.ID,
			SquareTeamMemberName: name,
			Status:               mapping.StatusSuggested,
		}
		var matchedName *string
		if result.candidate != nil {
			id := result.candidate.id
			if result.candidate.isTipper {
				proposal.TipEmployeeID = &id
			} else {
				proposal.EmployeeID = &id
			}
			matchedName = &result.candidate.name
		}

		created, ok, err := s.mappings.CreateIfAbsent(ctx, proposal)
		if err != nil {
			return nil, fmt.Errorf("save mapping suggestion for %s: %w", member.ID, err)
		}
		if !ok {
			continue
		}

		suggestions = append(suggestions, mapping.Suggestion{
			MappingID:            created.ID,
			SquareTeamMemberID:   member.ID,
			SquareTeamMemberName: name,
			EmployeeID:           proposal.EmployeeID,
			TipEmployeeID:        proposal.TipEmployeeID,
			MatchedName:          matchedName,
			Confidence:           result.confidence,
		})
	}

	slog.Info("Square mapping suggestions generated",
		"company_id", companyID,
		"team_members", len(members),
		"new_suggestions", len(suggestions),
	)
	return suggestions, nil
}

// GetMappings implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) GetMappings(ctx context.Context, companyID string) ([]mapping.MappingResponse, error) {
	mappings, err := s.mappings.ListByCompanyID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	resp := make([]mapping.MappingResponse, 0, len(mappings))
	for _, m := range mappings {
		resp = append(resp, mapping.ToResponse(m))
	}
	return resp, nil
}

// ConfirmMapping implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) ConfirmMapping(ctx context.Context, req mapping.ConfirmMappingRequest) (mapping.MappingResponse, error) {
	if err := req.Validate(); err != nil {
		return mapping.MappingResponse{}, err
	}

	exists, err := s.employees.Exists(ctx, req.CompanyID, req.EmployeeID, req.TipEmployeeID)
	if err != nil {
		return mapping.MappingResponse{}, err
	}
	if !exists {
		if req.EmployeeID != nil {
			return mapping.MappingResponse{}, employee.ErrEmployeeNotFound
		}
		return mapping.MappingResponse{}, employee.ErrTipEmployeeNotFound
	}

	confirmed, err := s.mappings.Confirm(ctx, req.ID, req.CompanyID, req.EmployeeID, req.TipEmployeeID, req.ConfirmedBy, s.now())
	if err != nil {
		return mapping.MappingResponse{}, err
	}

	slog.Info("Square mapping confirmed", "company_id", req.CompanyID, "mapping_id", req.ID, "confirmed_by", req.ConfirmedBy)
	return mapping.ToResponse(confirmed), nil
}

// IgnoreMapping implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) IgnoreMapping(ctx context.Context, id string, companyID string) (mapping.MappingResponse, error) {
	ignored, err := s.mappings.Ignore(ctx, id, companyID)
	if err != nil {
		return mapping.MappingResponse{}, err
	}
	return mapping.ToResponse(ignored), nil
}

// DeleteMapping implements squaresync.SquareSyncService.
func (s *SquareSyncServiceImpl) DeleteMapping(ctx context.Context, id string, companyID string) error {
	return s.mappings.Delete(ctx, id, companyID)
}
