package handler

import (
	"encoding/json"
	"testing"
)

func TestStationUpdateRemoveMissingDefault(t *testing.T) {
	cases := []struct {
		name string
		body string
		want bool
	}{
		{"omitted defaults to true", `{"name":"s1","ports":[]}`, true},
		{"explicit false respected", `{"name":"s1","remove_missing_ports":false}`, false},
		{"explicit true respected", `{"name":"s1","remove_missing_ports":true}`, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var req stationReq
			if err := json.Unmarshal([]byte(c.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := req.removeMissing(); got != c.want {
				t.Fatalf("removeMissing() = %v, want %v", got, c.want)
			}
		})
	}
}
