// Package ldaprecord maps entries in an LDAP directory to structured,
// relationally-navigable model objects, in the style of an object-relational
// mapper adapted to a directory protocol.
//
// The package provides:
//   - A fluent query builder over raw LDAP searches
//   - Model hydration with GUID-based identity
//   - Named and global query scopes, applied exactly once per query
//   - One-to-many relationships resolved through attribute-value pointers,
//     with paginated retrieval and idempotent attach/detach
//
// # Basic Usage
//
//	cfg := ldaprecord.NewConnectionConfig()
//	cfg.URL = "ldaps://dc.example.com:636"
//	cfg.BaseDN = "dc=example,dc=com"
//	cfg.Username = "cn=admin,dc=example,dc=com"
//	cfg.Password = "secret"
//
//	conn, err := ldaprecord.Connect(context.Background(), cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer conn.Close()
//
//	users := ldaprecord.NewModelType("user")
//	users.ObjectClasses = []string{"top", "person", "organizationalPerson", "user"}
//
//	user, err := users.Query(conn, cfg.BaseDN).
//		WhereEquals("samaccountname", "jdoe").
//		FirstOrFail(context.Background())
//
// # Relationships
//
// A one-to-many relationship is expressed purely through attribute values:
// a related entry is linked if and only if its relation-key attribute holds
// the parent's foreign value (usually the parent DN). There is no separate
// join record.
//
//	groups := ldaprecord.NewModelType("group")
//	staff, err := groups.Query(conn, cfg.BaseDN).FindByOrFail(ctx, "cn", "Staff")
//
//	members := ldaprecord.NewHasMany(staff, users, "memberof", "dn")
//	linked, err := members.Get(ctx)
//	_, err = members.Attach(ctx, user)   // safe to repeat
//	_, err = members.Detach(ctx, user)   // safe even if never attached
//
// Attach and detach treat "attribute or value exists" and "unwilling to
// perform" server responses as already-satisfied outcomes rather than
// failures, so both operations are idempotent without a pre-check search.
//
// # Error Handling
//
// Lookup failures are reported through typed errors: NotFoundError,
// MultipleObjectsFoundError, and InvalidUsageError. Directory-layer
// failures are wrapped in OperationError, which preserves the LDAP result
// code and the original server message.
package ldaprecord
