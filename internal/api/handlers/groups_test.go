package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"nc-warden.io/warden/internal/group"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

func TestGroupLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Kids Devices","kind":"static","members":[{"mac":"AA-BB-CC-DD-EE-01","alias":"tablet"}]}`)
	wantStatus(t, w, http.StatusCreated)

	var g group.Group
	decode(t, w, &g)
	if g.ID != "kids-devices" {
		t.Fatalf("id = %q, want slug kids-devices", g.ID)
	}
	if len(g.Members) != 1 || g.Members[0].MAC != "aa:bb:cc:dd:ee:01" {
		t.Fatalf("members = %v, want normalized MAC", g.Members)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/groups/kids-devices", "")
	wantStatus(t, w, http.StatusOK)

	w = ts.do(t, http.MethodPatch, "/api/v1/groups/kids-devices", `{"description":"bedtime list"}`)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &g)
	if g.Description != "bedtime list" {
		t.Fatalf("description = %q after edit", g.Description)
	}
	if g.Name != "Kids Devices" {
		t.Fatalf("name changed unexpectedly: %q", g.Name)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/groups", "")
	wantStatus(t, w, http.StatusOK)
	var list GroupList
	decode(t, w, &list)
	if list.Total != 1 {
		t.Fatalf("list total = %d, want 1", list.Total)
	}

	w = ts.do(t, http.MethodDelete, "/api/v1/groups/kids-devices", "")
	wantStatus(t, w, http.StatusNoContent)

	w = ts.do(t, http.MethodGet, "/api/v1/groups/kids-devices", "")
	wantErrorCode(t, w, http.StatusNotFound, apperrors.CodeGroupNotFound)
}

func TestCreateGroup_DuplicateName(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/groups", `{"name":"IoT","kind":"static"}`)
	wantStatus(t, w, http.StatusCreated)

	// Same slug even though the display name differs in case.
	w = ts.do(t, http.MethodPost, "/api/v1/groups", `{"name":"iot","kind":"static"}`)
	wantErrorCode(t, w, http.StatusConflict, apperrors.CodeGroupExists)
}

func TestCreateGroup_InvalidRule(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Weird","kind":"auto","rules":[{"type":"ip_range","pattern":"10.0.0.300-10.0.0.1"}]}`)
	wantErrorCode(t, w, http.StatusBadRequest, apperrors.CodeInvalidRule)
}

func TestGroupMembers_AddRemoveAlias(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/groups", `{"name":"Lab","kind":"static"}`)

	w := ts.do(t, http.MethodPost, "/api/v1/groups/lab/members",
		`{"members":[{"mac":"aa:bb:cc:dd:ee:01"},{"mac":"aa:bb:cc:dd:ee:02","alias":"printer"}]}`)
	wantStatus(t, w, http.StatusOK)
	var changed MembersChanged
	decode(t, w, &changed)
	if changed.Changed != 2 {
		t.Fatalf("added = %d, want 2", changed.Changed)
	}

	// Re-adding an existing member is a no-op, not an error.
	w = ts.do(t, http.MethodPost, "/api/v1/groups/lab/members",
		`{"members":[{"mac":"AA-BB-CC-DD-EE-01"}]}`)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &changed)
	if changed.Changed != 0 {
		t.Fatalf("added = %d for duplicate member, want 0", changed.Changed)
	}

	w = ts.do(t, http.MethodPut, "/api/v1/groups/lab/alias",
		`{"mac":"aa:bb:cc:dd:ee:01","alias":"scope"}`)
	wantStatus(t, w, http.StatusOK)
	var g group.Group
	decode(t, w, &g)
	if g.Members[0].Alias != "scope" {
		t.Fatalf("alias = %q, want scope", g.Members[0].Alias)
	}

	// Removal accepts aliases and MACs interchangeably.
	w = ts.do(t, http.MethodPost, "/api/v1/groups/lab/members/remove",
		`{"refs":["printer","aa:bb:cc:dd:ee:01"]}`)
	wantStatus(t, w, http.StatusOK)
	// The emptied group omits "members" from the JSON, and Unmarshal
	// leaves fields absent from the JSON untouched, so the reused decode
	// target must be zeroed to observe the now-empty member list.
	changed = MembersChanged{}
	decode(t, w, &changed)
	if changed.Changed != 2 {
		t.Fatalf("removed = %d, want 2", changed.Changed)
	}
	if len(changed.Group.Members) != 0 {
		t.Fatalf("members left = %v, want none", changed.Group.Members)
	}
}

func TestGroupMembers_RejectedOnAutoGroup(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Wired","kind":"auto","rules":[{"type":"connection_type","pattern":"wired"}]}`)

	w := ts.do(t, http.MethodPost, "/api/v1/groups/wired/members",
		`{"members":[{"mac":"aa:bb:cc:dd:ee:01"}]}`)
	wantErrorCode(t, w, http.StatusBadRequest, apperrors.CodeInvalidOperation)
}

// Static groups answer from stored members alone; the handler must not
// touch the controller even when it is unreachable.
func TestResolveGroup_StaticWorksOffline(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Kids","kind":"static","members":[{"mac":"aa:bb:cc:dd:ee:02"},{"mac":"aa:bb:cc:dd:ee:01"}]}`)

	ts.mock.Err = apperrors.ErrControllerUnreachablef("https://192.168.1.1:8443", nil)

	w := ts.do(t, http.MethodGet, "/api/v1/groups/kids/resolve", "")
	wantStatus(t, w, http.StatusOK)

	var res Resolution
	decode(t, w, &res)
	if res.Kind != "static" || res.Count != 2 {
		t.Fatalf("resolution = %+v", res)
	}
	if res.MACs[0] != "aa:bb:cc:dd:ee:01" || res.MACs[1] != "aa:bb:cc:dd:ee:02" {
		t.Fatalf("macs = %v, want sorted", res.MACs)
	}
}

func TestResolveGroup_AutoAgainstSnapshot(t *testing.T) {
	ts := newTestServer(t)
	seedClients(ts)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Wired","kind":"auto","rules":[{"type":"connection_type","pattern":"wired"}]}`)

	w := ts.do(t, http.MethodGet, "/api/v1/groups/wired/resolve", "")
	wantStatus(t, w, http.StatusOK)

	var res Resolution
	decode(t, w, &res)
	// Both wired clients match, including the offline blocked one: auto
	// groups evaluate the merged snapshot, not just active clients.
	if res.Count != 2 {
		t.Fatalf("count = %d, want 2 wired clients, macs=%v", res.Count, res.MACs)
	}
}

func TestResolveGroup_AutoUnreachable(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Wired","kind":"auto","rules":[{"type":"connection_type","pattern":"wired"}]}`)
	ts.mock.Err = apperrors.ErrControllerUnreachablef("https://192.168.1.1:8443", nil)

	w := ts.do(t, http.MethodGet, "/api/v1/groups/wired/resolve", "")
	wantErrorCode(t, w, http.StatusServiceUnavailable, apperrors.CodeControllerUnreachable)
}

func TestApplyGroupAction_PartialFailure(t *testing.T) {
	ts := newTestServer(t)
	seedClients(ts)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Mixed","kind":"static","members":[
			{"mac":"aa:bb:cc:dd:ee:01"},
			{"mac":"aa:bb:cc:dd:ee:03"},
			{"mac":"aa:bb:cc:dd:ee:99"}]}`)

	w := ts.do(t, http.MethodPost, "/api/v1/groups/mixed/actions", `{"action":"block"}`)
	wantStatus(t, w, http.StatusOK)

	var res struct {
		Total     int               `json:"total"`
		Succeeded int               `json:"succeeded"`
		Already   int               `json:"already_in_target_state"`
		Failed    int               `json:"failed"`
		Failures  map[string]string `json:"failures"`
	}
	decode(t, w, &res)
	if res.Total != 3 || res.Succeeded != 1 || res.Already != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 1/1/1", res)
	}
	if _, ok := res.Failures["aa:bb:cc:dd:ee:99"]; !ok {
		t.Fatalf("failures = %v, want entry for the unknown MAC", res.Failures)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Kids","kind":"static","members":[{"mac":"aa:bb:cc:dd:ee:01","alias":"tablet"}]}`)
	ts.do(t, http.MethodPost, "/api/v1/groups",
		`{"name":"Cameras","kind":"auto","rules":[{"type":"name","pattern":"cam*"}]}`)

	w := ts.do(t, http.MethodGet, "/api/v1/groups/export", "")
	wantStatus(t, w, http.StatusOK)
	var doc GroupExport
	decode(t, w, &doc)
	if len(doc.Groups) != 2 {
		t.Fatalf("exported %d groups, want 2", len(doc.Groups))
	}

	// Import into a fresh server.
	fresh := newTestServer(t)
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal export doc: %v", err)
	}
	w = fresh.do(t, http.MethodPost, "/api/v1/groups/import", string(raw))
	wantStatus(t, w, http.StatusOK)

	var res group.ImportResult
	decode(t, w, &res)
	if res.Added != 2 || res.Updated != 0 {
		t.Fatalf("import result = %+v, want 2 added", res)
	}

	w = fresh.do(t, http.MethodGet, "/api/v1/groups/kids", "")
	wantStatus(t, w, http.StatusOK)
}

func TestImportReplace(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/groups", `{"name":"Keep","kind":"static"}`)
	ts.do(t, http.MethodPost, "/api/v1/groups", `{"name":"Drop","kind":"static"}`)

	body := `{"groups":[{"id":"keep","name":"Keep","kind":"static","members":[{"mac":"aa:bb:cc:dd:ee:01"}]}]}`
	w := ts.do(t, http.MethodPost, "/api/v1/groups/import?replace=true", body)
	wantStatus(t, w, http.StatusOK)

	var res group.ImportResult
	decode(t, w, &res)
	if res.Updated != 1 || res.Removed != 1 {
		t.Fatalf("import result = %+v, want 1 updated 1 removed", res)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/groups/drop", "")
	wantErrorCode(t, w, http.StatusNotFound, apperrors.CodeGroupNotFound)
}
