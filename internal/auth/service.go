// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// dummyPasswordHash is used when a user doesn't exist or has password login
// disabled, so the verification still runs and response time stays constant.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// UserProfile is the subject data returned with a session.
type UserProfile struct {
	ID       ulid.ULID
	Name     string
	Identity string
}

// OrganizationInfo is the organization data returned with a session.
type OrganizationInfo struct {
	ID          ulid.ULID
	Name        string
	Description string
}

// SessionResult is the terminal login outcome: a signed session token and
// the context it scopes.
type SessionResult struct {
	Token        string
	ExpiresIn    int64 // seconds
	User         UserProfile
	Organization OrganizationInfo
	Roles        []Role
}

// SelectionResult is the intermediate login outcome for subjects with more
// than one membership: the candidate organizations and a follow-on token.
// No session token exists at this point.
type SelectionResult struct {
	Organizations []OrgMembership
	FollowOnToken string
}

// LoginResult holds exactly one of Session or Selection.
type LoginResult struct {
	Session   *SessionResult
	Selection *SelectionResult
}

// Service is the login orchestrator. It owns the credential check, the
// organization-selection state machine, and session issuance. It never
// persists anything: tokens are return values only, so cancelling an
// in-flight login leaves no partial state.
type Service struct {
	users       UserRepository
	orgs        OrganizationRepository
	memberships MembershipRepository
	hasher      PasswordHasher
	tokens      *TokenManager
	logger      *slog.Logger
	tracer      trace.Tracer
	sessionTTL  time.Duration
	followOnTTL time.Duration
}

// NewService creates a login orchestrator with the default logger and TTLs.
func NewService(users UserRepository, orgs OrganizationRepository, memberships MembershipRepository, hasher PasswordHasher, tokens *TokenManager) (*Service, error) {
	return NewServiceWithLogger(users, orgs, memberships, hasher, tokens, slog.Default())
}

// NewServiceWithLogger creates a login orchestrator with an explicit logger.
func NewServiceWithLogger(users UserRepository, orgs OrganizationRepository, memberships MembershipRepository, hasher PasswordHasher, tokens *TokenManager, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("users repository is required")
	}
	if orgs == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("organizations repository is required")
	}
	if memberships == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("memberships repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("token manager is required")
	}
	if logger == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("logger is required")
	}
	return &Service{
		users:       users,
		orgs:        orgs,
		memberships: memberships,
		hasher:      hasher,
		tokens:      tokens,
		logger:      logger,
		tracer:      otel.Tracer("stashd/auth"),
		sessionTTL:  DefaultSessionTTL,
		followOnTTL: DefaultFollowOnTTL,
	}, nil
}

// SetTTLs overrides the session and follow-on token lifetimes.
// Non-positive values keep the current setting.
func (s *Service) SetTTLs(session, followOn time.Duration) {
	if session > 0 {
		s.sessionTTL = session
	}
	if followOn > 0 {
		s.followOnTTL = followOn
	}
}

// SessionTTL returns the configured session token lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Login authenticates a subject and resolves exactly one outcome:
//
//   - session result, when the subject has one membership (or requested a
//     specific organization it belongs to)
//   - selection result, when the subject has several memberships and no
//     organization was requested
//   - ErrInvalidCredentials, ErrNoOrganizationAccess, or ErrOrgAccessDenied
//
// The password is always verified before any membership lookup, and an
// unknown identity runs the same verification path as a wrong password, so
// the two failures are indistinguishable by timing or response shape.
func (s *Service) Login(ctx context.Context, identity, password string, orgID *ulid.ULID) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	user, lookupErr := s.users.GetByIdentity(ctx, identity)

	targetHash := dummyPasswordHash
	userUsable := false
	switch {
	case lookupErr == nil:
		if user.PasswordHash != nil {
			targetHash = *user.PasswordHash
			userUsable = true
		}
	case errors.Is(lookupErr, ErrNotFound):
		// Keep going with the dummy hash.
	default:
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by identity").
			Wrap(lookupErr)
	}

	valid, verifyErr := s.hasher.Verify(ctx, password, targetHash)
	if verifyErr != nil {
		// Only cancellation reaches here; malformed hashes verify to false.
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}
	if !userUsable || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	orgs, err := s.memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "list memberships").
			Wrap(err)
	}
	if len(orgs) == 0 {
		return nil, oops.Code("AUTH_NO_ORG_ACCESS").
			With("subject_id", user.ID.String()).
			Wrap(ErrNoOrganizationAccess)
	}

	// Explicit organization request: direct session or denial.
	if orgID != nil {
		m := findMembership(orgs, *orgID)
		if m == nil {
			return nil, oops.Code("AUTH_ORG_ACCESS_DENIED").
				With("subject_id", user.ID.String()).
				With("organization_id", orgID.String()).
				Wrap(ErrOrgAccessDenied)
		}
		return s.sessionResult(user, *m)
	}

	// Single membership: no selection step.
	if len(orgs) == 1 {
		return s.sessionResult(user, orgs[0])
	}

	// Several memberships: hand back the list plus a follow-on token.
	followOn, err := s.tokens.IssueFollowOn(user.ID, user.Identity, s.followOnTTL)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue follow-on token").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "organization selection required",
		"subject_id", user.ID.String(),
		"organizations", len(orgs),
	)

	return &LoginResult{Selection: &SelectionResult{
		Organizations: orgs,
		FollowOnToken: followOn,
	}}, nil
}

// SelectOrganization completes the selection state: it validates the
// follow-on token, re-fetches the subject's current memberships (they may
// have changed since issuance), confirms the chosen organization is still
// present, and only then issues a session token. This is the only path out
// of a selection result.
func (s *Service) SelectOrganization(ctx context.Context, followOnToken string, orgID ulid.ULID) (*SessionResult, error) {
	ctx, span := s.tracer.Start(ctx, "auth.SelectOrganization")
	defer span.End()

	claims, err := s.tokens.ValidateFollowOn(followOnToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Subject vanished between issuance and redemption; the token no
			// longer refers to anything.
			return nil, oops.Code("AUTH_TOKEN_INVALID").
				With("subject_id", claims.SubjectID.String()).
				Wrap(ErrTokenInvalid)
		}
		return nil, oops.Code("AUTH_SELECT_ORG_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	orgs, err := s.memberships.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, oops.Code("AUTH_SELECT_ORG_FAILED").
			With("operation", "list memberships").
			Wrap(err)
	}

	m := findMembership(orgs, orgID)
	if m == nil {
		return nil, oops.Code("AUTH_ORG_ACCESS_DENIED").
			With("subject_id", user.ID.String()).
			With("organization_id", orgID.String()).
			Wrap(ErrOrgAccessDenied)
	}

	result, err := s.sessionResult(user, *m)
	if err != nil {
		return nil, err
	}
	return result.Session, nil
}

// WhoAmI resolves the profile for an already-validated session. Roles come
// from the token snapshot, not the datastore; only display data is fetched.
func (s *Service) WhoAmI(ctx context.Context, subjectID, orgID ulid.ULID, roles []Role) (*SessionResult, error) {
	user, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_INVALID").
				With("subject_id", subjectID.String()).
				Wrap(ErrTokenInvalid)
		}
		return nil, oops.Code("AUTH_WHOAMI_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_TOKEN_INVALID").
				With("organization_id", orgID.String()).
				Wrap(ErrTokenInvalid)
		}
		return nil, oops.Code("AUTH_WHOAMI_FAILED").
			With("operation", "get organization by id").
			Wrap(err)
	}

	return &SessionResult{
		User: UserProfile{ID: user.ID, Name: user.Name, Identity: user.Identity},
		Organization: OrganizationInfo{
			ID:          org.ID,
			Name:        org.Name,
			Description: org.Description,
		},
		Roles: roles,
	}, nil
}

// sessionResult issues a session token for the membership and assembles the
// terminal outcome.
func (s *Service) sessionResult(user *User, m OrgMembership) (*LoginResult, error) {
	token, err := s.tokens.IssueSession(user.ID, user.Identity, m.OrganizationID, m.Roles, s.sessionTTL)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session token").
			Wrap(err)
	}

	return &LoginResult{Session: &SessionResult{
		Token:     token,
		ExpiresIn: int64(s.sessionTTL.Seconds()),
		User:      UserProfile{ID: user.ID, Name: user.Name, Identity: user.Identity},
		Organization: OrganizationInfo{
			ID:          m.OrganizationID,
			Name:        m.OrganizationName,
			Description: m.OrganizationDescription,
		},
		Roles: m.Roles,
	}}, nil
}

func findMembership(orgs []OrgMembership, orgID ulid.ULID) *OrgMembership {
	for i := range orgs {
		if orgs[i].OrganizationID == orgID {
			return &orgs[i]
		}
	}
	return nil
}
