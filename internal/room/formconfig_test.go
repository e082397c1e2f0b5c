package room

import "testing"

func TestSpecRoomTypeGroup(t *testing.T) {
	if got := GroupSpec.RoomType(); got != TypeGroup {
		t.Fatalf("GroupSpec.RoomType() = %q, want %q", got, TypeGroup)
	}
}

func TestSpecRoomTypePublicChannel(t *testing.T) {
	if got := PublicChannelSpec.RoomType(); got != TypePublicChannel {
		t.Fatalf("PublicChannelSpec.RoomType() = %q, want %q", got, TypePublicChannel)
	}
}

func TestSpecRoomTypePrivateChannelFallsBackToGeneric(t *testing.T) {
	// PrivateChannelSpec is members-only/non-anonymous/persistent but not
	// hidden, so RoomType's Spec-only heuristic can't distinguish it from
	// a plain members-only room without consulting the room node; that
	// distinction is Classify's job, not Spec.RoomType's.
	if got := PrivateChannelSpec.RoomType(); got != TypeGeneric {
		t.Fatalf("PrivateChannelSpec.RoomType() = %q, want %q", got, TypeGeneric)
	}
}

func TestSpecFormCarriesExpectedFields(t *testing.T) {
	form := GroupSpec.Form("my-group")
	byVar := map[string][]string{}
	for _, f := range form.Fields {
		byVar[f.Var] = f.Values
	}
	if got := byVar["muc#roomconfig_roomname"]; len(got) != 1 || got[0] != "my-group" {
		t.Fatalf("roomname field = %v, want [my-group]", got)
	}
	if got := byVar["muc#roomconfig_membersonly"]; len(got) != 1 || got[0] != "1" {
		t.Fatalf("membersonly field = %v, want [1]", got)
	}
	if got := byVar["muc#roomconfig_whois"]; len(got) != 1 || got[0] != "anyone" {
		t.Fatalf("whois field = %v, want [anyone]", got)
	}
}

func TestClassifyGroupVsPrivateChannelByNode(t *testing.T) {
	groupNode := GroupNode([]string{"alice@example.com", "bob@example.com"})
	if got := Classify(groupNode, true, true, true, true, false); got != TypeGroup {
		t.Fatalf("Classify() = %q, want %q", got, TypeGroup)
	}
	if got := Classify("team-room", true, true, true, true, false); got != TypePrivateChannel {
		t.Fatalf("Classify() = %q, want %q", got, TypePrivateChannel)
	}
}

func TestClassifyPublicChannel(t *testing.T) {
	if got := Classify("announcements", false, false, true, false, true); got != TypePublicChannel {
		t.Fatalf("Classify() = %q, want %q", got, TypePublicChannel)
	}
}

func TestClassifyDefaultsToGeneric(t *testing.T) {
	if got := Classify("scratch", false, false, false, false, false); got != TypeGeneric {
		t.Fatalf("Classify() = %q, want %q", got, TypeGeneric)
	}
}
