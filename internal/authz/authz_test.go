package authz

import "testing"

var farm = Membership{
	OwnerID:  "owner",
	Managers: []string{"manager"},
	Workers:  []string{"worker"},
}

func TestViewTier(t *testing.T) {
	cases := []struct {
		actor Actor
		want  bool
	}{
		{Actor{ID: "owner", Role: "manager"}, true},
		{Actor{ID: "manager", Role: "manager"}, true},
		{Actor{ID: "worker", Role: "worker"}, true},
		{Actor{ID: "stranger", Role: "worker"}, false},
		{Actor{ID: "stranger", Role: "admin"}, true},
	}
	for _, c := range cases {
		if got := Allowed(c.actor, farm, ActionView); got != c.want {
			t.Errorf("view %s/%s = %v, want %v", c.actor.ID, c.actor.Role, got, c.want)
		}
	}
}

func TestCreateUpdateTier(t *testing.T) {
	for _, action := range []Action{ActionCreate, ActionUpdate} {
		if !Allowed(Actor{ID: "owner"}, farm, action) {
			t.Errorf("owner denied %s", action)
		}
		if !Allowed(Actor{ID: "manager"}, farm, action) {
			t.Errorf("manager denied %s", action)
		}
		if Allowed(Actor{ID: "worker"}, farm, action) {
			t.Errorf("worker allowed %s", action)
		}
	}
}

func TestDeleteTierIsOwnerOnly(t *testing.T) {
	if !Allowed(Actor{ID: "owner"}, farm, ActionDelete) {
		t.Error("owner denied delete")
	}
	if Allowed(Actor{ID: "manager"}, farm, ActionDelete) {
		t.Error("manager allowed delete")
	}
	if Allowed(Actor{ID: "worker"}, farm, ActionDelete) {
		t.Error("worker allowed delete")
	}
	if !Allowed(Actor{ID: "anyone", Role: "admin"}, farm, ActionDelete) {
		t.Error("admin denied delete")
	}
}

func TestAdminBypassesMembership(t *testing.T) {
	admin := Actor{ID: "outsider", Role: "admin"}
	for _, action := range []Action{ActionView, ActionCreate, ActionUpdate, ActionDelete} {
		if !Allowed(admin, farm, action) {
			t.Errorf("admin denied %s", action)
		}
	}
}

func TestCanCompleteAssigneeEscapeHatch(t *testing.T) {
	assignees := []string{"worker"}
	// assigned worker may complete despite lacking the update tier
	if Allowed(Actor{ID: "worker"}, farm, ActionUpdate) {
		t.Fatal("precondition: worker should lack update tier")
	}
	if !CanComplete(Actor{ID: "worker"}, farm, assignees) {
		t.Error("assigned worker denied completion")
	}
	// unassigned worker may not
	if CanComplete(Actor{ID: "other-worker", Role: "worker"}, farm, assignees) {
		t.Error("unassigned worker allowed completion")
	}
	// managers and owners complete without being assigned
	if !CanComplete(Actor{ID: "manager"}, farm, nil) {
		t.Error("manager denied completion")
	}
	if !CanComplete(Actor{ID: "owner"}, farm, nil) {
		t.Error("owner denied completion")
	}
}

func TestRequireReturnsTypedDenial(t *testing.T) {
	err := Require(Actor{ID: "worker"}, farm, ActionDelete)
	denied, ok := err.(DeniedError)
	if !ok {
		t.Fatalf("expected DeniedError, got %T", err)
	}
	if denied.Action != ActionDelete {
		t.Errorf("denial action = %s, want delete", denied.Action)
	}
	if err := Require(Actor{ID: "owner"}, farm, ActionDelete); err != nil {
		t.Errorf("owner delete: %v", err)
	}
}
