package repository

import (
	"reflect"
	"strings"
	"testing"
)

func TestReservationFilterSQLTail(t *testing.T) {
	cases := []struct {
		name      string
		f         ReservationFilter
		wantConds []string
		wantArgs  []interface{}
	}{
		{
			name:      "unscoped staff page",
			f:         ReservationFilter{Limit: 50, Offset: 0},
			wantConds: nil,
			wantArgs:  []interface{}{50, 0},
		},
		{
			name:      "owner scope only",
			f:         ReservationFilter{OwnerUserID: 10, Limit: 20, Offset: 40},
			wantConds: []string{`v.owner_user_id = ?`},
			wantArgs:  []interface{}{uint64(10), 20, 40},
		},
		{
			name:      "owner narrowed to vehicle and status",
			f:         ReservationFilter{OwnerUserID: 10, VehicleID: 3, Status: "PENDING", Limit: 50, Offset: 0},
			wantConds: []string{`v.owner_user_id = ?`, `r.vehicle_id = ?`, `r.status = ?`},
			wantArgs:  []interface{}{uint64(10), uint64(3), "PENDING", 50, 0},
		},
		{
			name:      "vehicle filter without owner",
			f:         ReservationFilter{VehicleID: 7, Limit: 10, Offset: 10},
			wantConds: []string{`r.vehicle_id = ?`},
			wantArgs:  []interface{}{uint64(7), 10, 10},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tail, args := c.f.sqlTail()

			if len(c.wantConds) == 0 {
				if strings.Contains(tail, "WHERE") {
					t.Fatalf("tail %q has a WHERE clause, want none", tail)
				}
			}
			for _, cond := range c.wantConds {
				if !strings.Contains(tail, cond) {
					t.Fatalf("tail %q missing condition %q", tail, cond)
				}
			}
			if !strings.Contains(tail, `ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`) {
				t.Fatalf("tail %q missing order/paging suffix", tail)
			}
			// Placeholder count must match the argument list.
			if got, want := strings.Count(tail, "?"), len(args); got != want {
				t.Fatalf("placeholders = %d, args = %d", got, want)
			}
			if !reflect.DeepEqual(args, c.wantArgs) {
				t.Fatalf("args = %#v, want %#v", args, c.wantArgs)
			}
		})
	}
}
