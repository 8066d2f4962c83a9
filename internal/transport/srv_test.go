package transport

import "testing"

func TestRotationOrderSortsByPriorityThenStartsAtOffset(t *testing.T) {
	endpoints := []endpoint{
		{host: "c", priority: 2, weight: 1},
		{host: "a", priority: 1, weight: 1},
		{host: "b", priority: 1, weight: 1},
	}

	order := rotationOrder(endpoints, 0)
	if order[0].priority != 1 || order[1].priority != 1 || order[2].priority != 2 {
		t.Fatalf("expected priority-ascending order, got %+v", order)
	}

	rotated := rotationOrder(endpoints, 1)
	if rotated[0].host == order[0].host {
		t.Errorf("expected rotation offset to change starting endpoint")
	}
	if len(rotated) != len(order) {
		t.Fatalf("rotation must not drop endpoints: got %d want %d", len(rotated), len(order))
	}
}

func TestRotationOrderEmpty(t *testing.T) {
	if got := rotationOrder(nil, 3); len(got) != 0 {
		t.Fatalf("expected empty rotation for no endpoints, got %+v", got)
	}
}

func TestSelectFileScheme(t *testing.T) {
	tr := Select("file:///tmp/checkin.json")
	if _, ok := tr.(*File); !ok {
		t.Fatalf("expected File transport for file:// endpoint, got %T", tr)
	}
}

func TestSelectHTTPScheme(t *testing.T) {
	tr := Select("https://ingest.example.com")
	if _, ok := tr.(*HTTP); !ok {
		t.Fatalf("expected HTTP transport for https:// endpoint, got %T", tr)
	}
}

func TestSelectEmptyEndpointUsesSRV(t *testing.T) {
	tr := Select("")
	if _, ok := tr.(*SRV); !ok {
		t.Fatalf("expected SRV transport for empty endpoint, got %T", tr)
	}
}

func TestSelectBareHostnameUsesSRV(t *testing.T) {
	tr := Select("ingest.example.com")
	if _, ok := tr.(*SRV); !ok {
		t.Fatalf("expected SRV transport for bare hostname, got %T", tr)
	}
}
