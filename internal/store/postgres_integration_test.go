// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Stashd Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/oklog/ulid/v2"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stashd/stashd/internal/auth"
	authpg "github.com/stashd/stashd/internal/auth/postgres"
	"github.com/stashd/stashd/internal/store"
)

// setupPostgresContainer starts a PostgreSQL container, connects, and applies
// all migrations.
func setupPostgresContainer() (*pgxpool.Pool, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stashd_test"),
		tcpostgres.WithUsername("stashd"),
		tcpostgres.WithPassword("stashd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, nil, err
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		return nil, nil, err
	}
	if err := migrator.Close(); err != nil {
		return nil, nil, err
	}

	pool, err := store.Connect(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup, nil
}

var _ = Describe("Auth repositories", func() {
	var pool *pgxpool.Pool
	var cleanup func()
	var users *authpg.UserRepository
	var orgs *authpg.OrganizationRepository
	var memberships *authpg.MembershipRepository

	BeforeEach(func() {
		var err error
		pool, cleanup, err = setupPostgresContainer()
		Expect(err).NotTo(HaveOccurred())
		users = authpg.NewUserRepository(pool)
		orgs = authpg.NewOrganizationRepository(pool)
		memberships = authpg.NewMembershipRepository(pool)
	})

	AfterEach(func() {
		cleanup()
	})

	newUser := func(identity string) *auth.User {
		hash := "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
		user, err := auth.NewUser("Test User", identity, &hash)
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	newOrg := func(name string) *auth.Organization {
		org, err := auth.NewOrganization(name, "")
		Expect(err).NotTo(HaveOccurred())
		return org
	}

	Describe("UserRepository", func() {
		It("creates and retrieves users", func() {
			ctx := context.Background()
			user := newUser("alice@example.com")

			Expect(users.Create(ctx, user)).To(Succeed())

			got, err := users.GetByID(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Identity).To(Equal("alice@example.com"))

			got, err = users.GetByIdentity(ctx, "ALICE@EXAMPLE.COM")
			Expect(err).NotTo(HaveOccurred(), "identity lookup is case-insensitive")
			Expect(got.ID).To(Equal(user.ID))
		})

		It("rejects duplicate identities case-insensitively", func() {
			ctx := context.Background()
			Expect(users.Create(ctx, newUser("dup@example.com"))).To(Succeed())

			err := users.Create(ctx, newUser("DUP@example.com"))
			Expect(err).To(HaveOccurred())
			Expect(store.IsUniqueViolation(err)).To(BeTrue())
		})

		It("maps missing users to the sentinel", func() {
			ctx := context.Background()
			_, err := users.GetByID(ctx, ulid.Make())
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("lists users ordered by identity", func() {
			ctx := context.Background()
			Expect(users.Create(ctx, newUser("carol@example.com"))).To(Succeed())
			Expect(users.Create(ctx, newUser("bob@example.com"))).To(Succeed())

			list, err := users.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].Identity).To(Equal("bob@example.com"))
			Expect(list[1].Identity).To(Equal("carol@example.com"))
		})
	})

	Describe("MembershipRepository", func() {
		var user *auth.User
		var acme, globex *auth.Organization

		BeforeEach(func() {
			ctx := context.Background()
			user = newUser("alice@example.com")
			acme = newOrg("Acme")
			globex = newOrg("Globex")
			Expect(users.Create(ctx, user)).To(Succeed())
			Expect(orgs.Create(ctx, acme)).To(Succeed())
			Expect(orgs.Create(ctx, globex)).To(Succeed())
		})

		It("round-trips role sets ordered by organization name", func() {
			ctx := context.Background()
			Expect(memberships.Set(ctx, user.ID, globex.ID, []auth.Role{auth.RoleUser})).To(Succeed())
			Expect(memberships.Set(ctx, user.ID, acme.ID, []auth.Role{auth.RoleUser, auth.RoleAdmin})).To(Succeed())

			list, err := memberships.ListByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].OrganizationName).To(Equal("Acme"))
			Expect(list[0].Roles).To(Equal([]auth.Role{auth.RoleUser, auth.RoleAdmin}))
			Expect(list[1].OrganizationName).To(Equal("Globex"))
		})

		It("replaces roles on repeated Set", func() {
			ctx := context.Background()
			Expect(memberships.Set(ctx, user.ID, acme.ID, []auth.Role{auth.RoleUser})).To(Succeed())
			Expect(memberships.Set(ctx, user.ID, acme.ID, []auth.Role{auth.RoleAdmin})).To(Succeed())

			list, err := memberships.ListByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(list[0].Roles).To(Equal([]auth.Role{auth.RoleAdmin}))
		})

		It("cascades when the user is deleted", func() {
			ctx := context.Background()
			Expect(memberships.Set(ctx, user.ID, acme.ID, []auth.Role{auth.RoleUser})).To(Succeed())
			Expect(users.Delete(ctx, user.ID)).To(Succeed())

			list, err := memberships.ListByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("cascades when the organization is deleted", func() {
			ctx := context.Background()
			Expect(memberships.Set(ctx, user.ID, acme.ID, []auth.Role{auth.RoleUser})).To(Succeed())
			Expect(orgs.Delete(ctx, acme.ID)).To(Succeed())

			list, err := memberships.ListByUser(ctx, user.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(BeEmpty())
		})

		It("rejects memberships for unknown users", func() {
			ctx := context.Background()
			err := memberships.Set(ctx, ulid.Make(), acme.ID, []auth.Role{auth.RoleUser})
			Expect(err).To(HaveOccurred())
			Expect(store.IsForeignKeyViolation(err)).To(BeTrue())
		})
	})
})
