package ldaprecord

import (
	"context"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewModelTypeDefaults(t *testing.T) {
	typ := NewModelType("user")

	assert.Equal(t, "user", typ.Name)
	assert.Equal(t, "objectGUID", typ.GUIDKey)
	assert.True(t, typ.BinaryGUID)
	assert.False(t, typ.SupportsANR)
	assert.Equal(t, defaultANRAttributes, typ.ANRAttributes)
}

func TestModelTypeANRAttributesAreNotShared(t *testing.T) {
	a := NewModelType("a")
	b := NewModelType("b")

	a.ANRAttributes[0] = "changed"

	assert.Equal(t, "cn", b.ANRAttributes[0])
}

func TestHydratePreservesResultOrder(t *testing.T) {
	typ := NewModelType("user")
	results := typ.Hydrate(nil, []*ldap.Entry{
		testEntry("cn=b,dc=example,dc=com"),
		testEntry("cn=a,dc=example,dc=com"),
		testEntry("cn=c,dc=example,dc=com"),
	})

	dns := make([]string, 0, 3)
	_ = results.Each(func(m *Model) error {
		dns = append(dns, m.DN())
		return nil
	})
	assert.Equal(t, []string{
		"cn=b,dc=example,dc=com",
		"cn=a,dc=example,dc=com",
		"cn=c,dc=example,dc=com",
	}, dns)
}

func TestModelAttributeAccess(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com",
		stringAttr("cn", "jdoe"),
		stringAttr("mail", "jdoe@example.com", "john@example.com"),
	)

	assert.Equal(t, "cn=jdoe,dc=example,dc=com", model.DN())
	assert.Equal(t, []string{"cn", "mail"}, model.AttributeNames())

	// Lookup is case-insensitive.
	assert.True(t, model.HasAttribute("MAIL"))
	assert.Equal(t, []string{"jdoe@example.com", "john@example.com"}, model.Attribute("Mail"))
	assert.Equal(t, "jdoe@example.com", model.FirstAttribute("mail"))

	assert.False(t, model.HasAttribute("sn"))
	assert.Nil(t, model.Attribute("sn"))
	assert.Empty(t, model.FirstAttribute("sn"))
}

func TestModelAttributeReturnsCopy(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com",
		stringAttr("mail", "jdoe@example.com"))

	values := model.Attribute("mail")
	values[0] = "tampered"

	assert.Equal(t, "jdoe@example.com", model.FirstAttribute("mail"))
}

func TestModelObjectGUIDFromBinary(t *testing.T) {
	guid := "a1b2c3d4-e5f6-0718-293a-4b5c6d7e8f90"
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com", guidAttr(guid))

	assert.Equal(t, guid, model.ObjectGUID())
}

func TestModelObjectGUIDFromString(t *testing.T) {
	guid := "a1b2c3d4-e5f6-0718-293a-4b5c6d7e8f90"
	typ := NewModelType("posixAccount")
	typ.GUIDKey = "entryUUID"
	typ.BinaryGUID = false

	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(typ, conn, "uid=jdoe,dc=example,dc=com", stringAttr("entryUUID", guid))

	assert.Equal(t, guid, model.ObjectGUID())
}

func TestModelObjectGUIDAbsent(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com")

	assert.Empty(t, model.ObjectGUID())
}

func TestModelObjectSID(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("group"), conn, "cn=Admins,dc=example,dc=com",
		&ldap.EntryAttribute{
			Name:       "objectSid",
			Values:     []string{string(builtinAdministratorsSID)},
			ByteValues: [][]byte{builtinAdministratorsSID},
		})

	assert.Equal(t, "S-1-5-32-544", model.ObjectSID())
}

func TestModelObjectSIDFromString(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("group"), conn, "cn=Admins,dc=example,dc=com",
		&ldap.EntryAttribute{Name: "objectSid", Values: []string{"S-1-5-21-1-2-3-500"}})

	assert.Equal(t, "S-1-5-21-1-2-3-500", model.ObjectSID())
}

func TestModelDate(t *testing.T) {
	typ := NewModelType("user")
	typ.DateAttributes = []string{"whenCreated"}

	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(typ, conn, "cn=jdoe,dc=example,dc=com",
		stringAttr("whenCreated", "20240315103000.0Z"))

	parsed, err := model.Date("whenCreated")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), parsed.UTC())

	_, err = model.Date("cn")
	assert.ErrorAs(t, err, new(*InvalidUsageError))
}

func TestModelCreateAttributeUpdatesLocalState(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	conn.On("Modify", mock.Anything, mock.MatchedBy(func(req *ModifyRequest) bool {
		values := req.AddAttributes["description"]
		return req.DN == "cn=jdoe,dc=example,dc=com" && len(values) == 1 && values[0] == "engineer"
	})).Return(nil)

	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com")

	require.NoError(t, model.CreateAttribute(context.Background(), "description", "engineer"))
	assert.Equal(t, "engineer", model.FirstAttribute("description"))
	conn.AssertExpectations(t)
}

func TestModelCreateAttributeRequiresValues(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com")

	err := model.CreateAttribute(context.Background(), "description")
	assert.ErrorAs(t, err, new(*InvalidUsageError))
	conn.AssertNotCalled(t, "Modify")
}

func TestModelDeleteAttributeValue(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	conn.On("Modify", mock.Anything, mock.Anything).Return(nil)

	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com",
		stringAttr("memberOf", "cn=a,dc=example,dc=com", "cn=b,dc=example,dc=com"))

	require.NoError(t, model.DeleteAttribute(context.Background(), "memberOf", "cn=a,dc=example,dc=com"))
	assert.Equal(t, []string{"cn=b,dc=example,dc=com"}, model.Attribute("memberOf"))
}

func TestModelDeleteAttributeValueDropsRawBytes(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	conn.On("Modify", mock.Anything, mock.Anything).Return(nil)

	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com",
		stringAttr("memberOf", "cn=a,dc=example,dc=com", "cn=b,dc=example,dc=com"))

	require.NoError(t, model.DeleteAttribute(context.Background(), "memberOf", "cn=a,dc=example,dc=com"))

	raw := model.RawAttribute("memberOf")
	require.Len(t, raw, 1)
	assert.Equal(t, "cn=b,dc=example,dc=com", string(raw[0]))
}

func TestModelDeleteWholeAttribute(t *testing.T) {
	conn := NewMockConnection("dc=example,dc=com")
	conn.On("Modify", mock.Anything, mock.MatchedBy(func(req *ModifyRequest) bool {
		values, ok := req.DeleteAttributes["description"]
		return ok && len(values) == 0
	})).Return(nil)

	model := hydrateOne(NewModelType("user"), conn, "cn=jdoe,dc=example,dc=com",
		stringAttr("cn", "jdoe"),
		stringAttr("description", "engineer"))

	require.NoError(t, model.DeleteAttribute(context.Background(), "description"))
	assert.False(t, model.HasAttribute("description"))
	assert.Equal(t, []string{"cn"}, model.AttributeNames())
}
