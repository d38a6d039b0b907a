package main

import "testing"

func TestParseVoucher(t *testing.T) {
	testCases := []struct {
		raw    string
		code   string
		amount int64
		isErr  bool
	}{
		{"CASH50=50", "CASH50", 50, false},
		{" cash100 = 100 ", "cash100", 100, false},
		{"CASH50", "", 0, true},
		{"=50", "", 0, true},
		{"CASH50=0", "", 0, true},
		{"CASH50=12.5", "", 0, true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseVoucher(tc.raw)
			if tc.isErr {
				if err == nil {
					t.Fatalf("parseVoucher(%q) should fail", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVoucher: %v", err)
			}
			if got.code != tc.code || got.amount != tc.amount {
				t.Errorf("parseVoucher(%q) = %+v", tc.raw, got)
			}
		})
	}
}

func TestVoucherFlags_Set(t *testing.T) {
	var v voucherFlags
	if err := v.Set("A=1"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("B=2"); err != nil {
		t.Fatal(err)
	}
	if got := v.String(); got != "A=1,B=2" {
		t.Errorf("String = %q", got)
	}
}
