package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/services/jobs"
	"github.com/trezcool/elimu/storage/database/inmem"
	"github.com/trezcool/elimu/testutil"
)

func TestNewScheduler(t *testing.T) {
	logger := testutil.NewLogger()
	catalogSvc := catalog.NewService(inmemdb.NewCatalogRepository(inmemdb.NewDB()), logger)

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{name: "descriptor", schedule: "@every 1h"},
		{name: "cron expression", schedule: "15 2 * * *"},
		{name: "invalid", schedule: "every now and then", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := testutil.NewConfig()
			conf.Jobs.ReconcileSchedule = tt.schedule

			s, err := jobs.NewScheduler(conf, catalogSvc, logger)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, s.Entries())

			s.Start()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			assert.NoError(t, s.Stop(ctx))
		})
	}
}

func TestReconcile(t *testing.T) {
	db := inmemdb.NewDB()
	catalogSvc := catalog.NewService(inmemdb.NewCatalogRepository(db), testutil.NewLogger())

	db.InsertOrphanAssignment(catalog.Assignment{ID: "orphan-a", CourseID: "gone"})
	db.InsertOrphanTest(catalog.Test{ID: "orphan-t", CourseID: "gone"})
	db.InsertOrphanTest(catalog.Test{ID: "orphan-t2", CourseID: "gone"})

	n, err := jobs.Reconcile(context.Background(), catalogSvc)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = jobs.Reconcile(context.Background(), catalogSvc)
	require.NoError(t, err)
	assert.Zero(t, n)
}
