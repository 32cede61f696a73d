package quota_test

import (
	"context"
	"errors"
	"testing"

	"gardenlog/internal/quota"
	"gardenlog/internal/testsupport"
)

type stubEstimator struct {
	usage quota.Usage
	err   error
}

func (e stubEstimator) Estimate(ctx context.Context) (quota.Usage, error) {
	return e.usage, e.err
}

func TestGuardBoundary(t *testing.T) {
	t.Parallel()

	// Quota 1000 with a 10% margin reserves 100 bytes; 200 used leaves 700.
	guard := quota.NewGuard(stubEstimator{usage: quota.Usage{Used: 200, Quota: 1000}}, 0.10, testsupport.NopLogger())
	ctx := context.Background()

	cases := []struct {
		name     string
		required uint64
		want     bool
	}{
		{"well under", 100, true},
		{"exactly available", 700, true},
		{"one over", 701, false},
		{"zero bytes", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := guard.Check(ctx, tc.required)
			if result.HasSpace != tc.want {
				t.Fatalf("Check(%d) = %v, want %v", tc.required, result.HasSpace, tc.want)
			}
		})
	}
}

func TestGuardFailsOpenOnEstimatorError(t *testing.T) {
	t.Parallel()

	guard := quota.NewGuard(stubEstimator{err: errors.New("statfs unavailable")}, 0.10, testsupport.NopLogger())

	result := guard.Check(context.Background(), 1<<40)
	if !result.HasSpace {
		t.Fatal("guard must fail open when usage cannot be determined")
	}
}

func TestGuardFailsOpenWithoutEstimator(t *testing.T) {
	t.Parallel()

	guard := quota.NewGuard(nil, 0.10, testsupport.NopLogger())

	result := guard.Check(context.Background(), 1<<40)
	if !result.HasSpace {
		t.Fatal("guard must fail open without an estimator")
	}
}

func TestGuardFailsOpenOnZeroQuota(t *testing.T) {
	t.Parallel()

	guard := quota.NewGuard(stubEstimator{usage: quota.Usage{Used: 0, Quota: 0}}, 0.10, testsupport.NopLogger())

	result := guard.Check(context.Background(), 10)
	if !result.HasSpace {
		t.Fatal("a zero quota means usage is unknown, not full")
	}
}
