package services

import (
	"testing"

	"editorial-workflow-api/models"
)

func TestCapabilityMatrix(t *testing.T) {
	cases := []struct {
		role                                   models.Role
		submit, review, decide, layout, admin bool
	}{
		{models.RoleAuthor, true, false, false, false, false},
		{models.RoleReviewer, false, true, false, false, false},
		{models.RoleEditor, false, false, true, false, false},
		{models.RoleLayoutEditor, false, false, false, true, false},
		{models.RoleAdmin, true, true, true, true, true},
		{models.Role(0), false, false, false, false, false},
		{models.Role(42), false, false, false, false, false},
	}
	for _, tc := range cases {
		got := []bool{CanSubmit(tc.role), CanReview(tc.role), CanDecide(tc.role), CanLayout(tc.role), CanAdmin(tc.role)}
		want := []bool{tc.submit, tc.review, tc.decide, tc.layout, tc.admin}
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("%s: capability %d got %v want %v", tc.role, i, got[i], want[i])
			}
		}
	}
}

func TestHasAny(t *testing.T) {
	if !HasAny(models.RoleAuthor, CapDecide, CapSubmit) {
		t.Fatalf("author holds submit")
	}
	if HasAny(models.RoleReviewer) {
		t.Fatalf("no capabilities requested means no access")
	}
	if capabilityNames([]Capability{CapDecide, CapAdmin}) != "decide|admin" {
		t.Fatalf("unexpected capability names")
	}
}
