package store

import (
	"github.com/queryplan/sqlplan/lib/store/accessstore"
	"github.com/queryplan/sqlplan/lib/store/querystore"
)

type Provider struct {
	policy     *accessstore.Policy
	queryStore *querystore.QueryStore
}

func NewStoreProvider(policy *accessstore.Policy, queryStore *querystore.QueryStore) *Provider {
	return &Provider{
		policy:     policy,
		queryStore: queryStore,
	}
}

func (s *Provider) AccessPolicy() *accessstore.Policy {
	return s.policy
}

func (s *Provider) QueryStore() *querystore.QueryStore {
	return s.queryStore
}
