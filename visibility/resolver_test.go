package visibility_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/crm-engine/visibility"
)

func user(id, emp, manager string, access visibility.AccessLevel) visibility.OrgUser {
	return visibility.OrgUser{ID: id, EmpCode: emp, ManagerEmpCode: manager, Access: access}
}

// A (unrestricted), B (top of hierarchy), C reports to B.
func threeUsers() visibility.Users {
	return visibility.Users{
		user("A", "E-A", "E-A", visibility.Unrestricted),
		user("B", "E-B", "E-B", visibility.Standard),
		user("C", "E-C", "E-B", visibility.Standard),
	}
}

func TestResolveOwnerScope_UnrestrictedIgnoresHierarchy(t *testing.T) {
	dirs := []visibility.Users{
		threeUsers(),
		nil,
		{user("X", "E-X", "E-A", visibility.Standard)},
	}
	a := user("A", "E-A", "E-NOBODY", visibility.Unrestricted)

	for _, dir := range dirs {
		scope := visibility.ResolveOwnerScope(a, dir)
		assert.True(t, scope.IsUnrestricted())
		assert.Nil(t, scope.Owners())
		assert.True(t, scope.Includes("anyone"))
	}
}

func TestResolveOwnerScope_SelfPlusDirectReports(t *testing.T) {
	dir := visibility.Users{
		user("M", "E-M", "E-TOP", visibility.Standard),
		user("TOP", "E-TOP", "E-TOP", visibility.Admin),
		user("R1", "E-R1", "E-M", visibility.Standard),
		user("R2", "E-R2", "E-M", visibility.Standard),
		user("RR", "E-RR", "E-R1", visibility.Standard), // report of a report
	}

	scope := visibility.ResolveOwnerScope(dir[0], dir)

	assert.False(t, scope.IsUnrestricted())
	assert.ElementsMatch(t, []string{"M", "R1", "R2"}, scope.Owners())
	assert.False(t, scope.Includes("RR"), "hierarchy is one level deep")
	assert.False(t, scope.Includes("TOP"))
}

func TestResolveOwnerScope_TopOfHierarchyNoDuplicateSelf(t *testing.T) {
	dir := threeUsers()

	scope := visibility.ResolveOwnerScope(dir[1], dir)

	assert.Equal(t, []string{"B", "C"}, scope.Owners())
}

func TestResolveOwnerScope_LeafSeesOnlySelf(t *testing.T) {
	dir := threeUsers()

	scope := visibility.ResolveOwnerScope(dir[2], dir)

	assert.Equal(t, []string{"C"}, scope.Owners())
}

func TestResolveOwnerScope_AdminIsStillScoped(t *testing.T) {
	dir := visibility.Users{
		user("AD", "E-AD", "E-AD", visibility.Admin),
		user("S", "E-S", "E-AD", visibility.Standard),
		user("O", "E-O", "E-O", visibility.Standard),
	}

	scope := visibility.ResolveOwnerScope(dir[0], dir)

	assert.Equal(t, []string{"AD", "S"}, scope.Owners())
}

func TestResolveOwnerScope_MissingManagerFallsBackToSelf(t *testing.T) {
	// GIVEN: M's manager code points at nobody, and M has a report
	dir := visibility.Users{
		user("M", "E-M", "E-GONE", visibility.Standard),
		user("R", "E-R", "E-M", visibility.Standard),
	}

	// WHEN
	err := visibility.CheckHierarchy(dir[0], dir)
	scope := visibility.ResolveOwnerScope(dir[0], dir)

	// THEN: the link is reported and the scope is self-only
	require.Error(t, err)
	assert.ErrorIs(t, err, visibility.ErrMissingHierarchyLink)
	var missing *visibility.MissingHierarchyLinkError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "E-GONE", missing.ManagerEmpCode)

	assert.Equal(t, []string{"M"}, scope.Owners())
}

func TestResolveOwnerScope_UserAbsentFromDirectory(t *testing.T) {
	// The requesting user need not be part of the fetched collection.
	dir := visibility.Users{user("R", "E-R", "E-NEW", visibility.Standard)}
	newcomer := user("NEW", "E-NEW", "E-NEW", visibility.Standard)

	assert.Equal(t, []string{"NEW", "R"}, visibility.ResolveOwnerScope(newcomer, dir).Owners())
}

func TestCheckHierarchy_ValidLinks(t *testing.T) {
	dir := threeUsers()
	for _, u := range dir {
		assert.NoError(t, visibility.CheckHierarchy(u, dir), u.ID)
	}
}

func TestOwners_DeduplicatesAndSorts(t *testing.T) {
	s := visibility.Owners("b", "a", "b", "")
	assert.Equal(t, []string{"a", "b"}, s.Owners())
	assert.Equal(t, "owners(a,b)", s.String())
	assert.Equal(t, "unrestricted", visibility.AllOwners().String())

	// Owners returns a copy
	got := s.Owners()
	got[0] = "z"
	assert.Equal(t, []string{"a", "b"}, s.Owners())
}

func TestParseAccessLevel(t *testing.T) {
	tests := map[string]visibility.AccessLevel{
		"user":         visibility.Standard,
		"standard":     visibility.Standard,
		"":             visibility.Standard,
		"admin":        visibility.Admin,
		"Super_Admin":  visibility.Unrestricted,
		"unrestricted": visibility.Unrestricted,
	}
	for in, want := range tests {
		got, err := visibility.ParseAccessLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := visibility.ParseAccessLevel("root")
	assert.Error(t, err)

	assert.True(t, visibility.Unrestricted.AtLeast(visibility.Admin))
	assert.False(t, visibility.Standard.AtLeast(visibility.Admin))
}

// =============================================================================
// APPLY SCOPE
// =============================================================================

type listQuery struct {
	owners   []string
	narrowed bool
}

func (q listQuery) WithOwners(owners []string) listQuery {
	return listQuery{owners: owners, narrowed: true}
}

func TestApplyScope(t *testing.T) {
	base := listQuery{}

	unchanged := visibility.ApplyScope(base, visibility.AllOwners())
	assert.False(t, unchanged.narrowed)

	narrowed := visibility.ApplyScope(base, visibility.Owners("B", "C"))
	assert.True(t, narrowed.narrowed)
	assert.Equal(t, []string{"B", "C"}, narrowed.owners)
	assert.False(t, base.narrowed, "input query is not modified")
}
