package ldaprecord

import (
	"context"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/mock"
)

// MockConnection implements the Connection interface for testing.
type MockConnection struct {
	mock.Mock

	baseDN string
}

func NewMockConnection(baseDN string) *MockConnection {
	return &MockConnection{baseDN: baseDN}
}

func (m *MockConnection) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	args := m.Called(ctx, req)
	var result *SearchResult
	if v := args.Get(0); v != nil {
		result = v.(*SearchResult)
	}
	return result, args.Error(1)
}

func (m *MockConnection) SearchWithPaging(ctx context.Context, req *SearchRequest, pageSize uint32) (*SearchResult, error) {
	args := m.Called(ctx, req, pageSize)
	var result *SearchResult
	if v := args.Get(0); v != nil {
		result = v.(*SearchResult)
	}
	return result, args.Error(1)
}

func (m *MockConnection) Add(ctx context.Context, req *AddRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockConnection) Modify(ctx context.Context, req *ModifyRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockConnection) Delete(ctx context.Context, dn string) error {
	args := m.Called(ctx, dn)
	return args.Error(0)
}

func (m *MockConnection) Bind(ctx context.Context, username, password string) error {
	args := m.Called(ctx, username, password)
	return args.Error(0)
}

func (m *MockConnection) BindKerberos(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockConnection) WhoAmI(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockConnection) BaseDN() string {
	return m.baseDN
}

func (m *MockConnection) Close() error {
	args := m.Called()
	return args.Error(0)
}

// testEntry builds a raw LDAP entry for hydration tests.
func testEntry(dn string, attrs ...*ldap.EntryAttribute) *ldap.Entry {
	return &ldap.Entry{DN: dn, Attributes: attrs}
}

func stringAttr(name string, values ...string) *ldap.EntryAttribute {
	byteValues := make([][]byte, 0, len(values))
	for _, v := range values {
		byteValues = append(byteValues, []byte(v))
	}
	return &ldap.EntryAttribute{Name: name, Values: values, ByteValues: byteValues}
}

func guidAttr(guid string) *ldap.EntryAttribute {
	b, err := GUIDToBytes(guid)
	if err != nil {
		panic(err)
	}
	return &ldap.EntryAttribute{
		Name:       "objectGUID",
		Values:     []string{string(b)},
		ByteValues: [][]byte{b},
	}
}

// searchWithBase matches a search request by its base DN.
func searchWithBase(baseDN string) any {
	return mock.MatchedBy(func(req *SearchRequest) bool {
		return req.BaseDN == baseDN
	})
}

// searchWithFilter matches a search request by its rendered filter.
func searchWithFilter(filter string) any {
	return mock.MatchedBy(func(req *SearchRequest) bool {
		return req.Filter == filter
	})
}

func entriesResult(entries ...*ldap.Entry) *SearchResult {
	return &SearchResult{Entries: entries, Total: len(entries)}
}
