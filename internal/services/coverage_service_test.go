// internal/services/coverage_service_test.go
package services

import (
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/claimdesk-backend/internal/models"
	"github.com/javajoker/claimdesk-backend/internal/workflow"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func (suite *ServiceTestSuite) TestCoverageEligibilityPerWindow() {
	claim := suite.newDraft()

	periods, err := suite.coverage.SetCoveragePeriods(suite.ctx, claim.ID, suite.agent, &SetCoverageRequest{
		Periods: []CoveragePeriodInput{
			{PeriodType: models.CoveragePeriodBefore, StartDate: day("2026-01-01"), EndDate: day("2026-01-11")},
			{PeriodType: models.CoveragePeriodAfter, StartDate: day("2026-01-12"), EndDate: day("2026-02-26")},
		},
	})
	require.NoError(suite.T(), err)
	require.Len(suite.T(), periods, 2)

	byType := map[models.CoveragePeriodType]models.ClaimCoveragePeriod{}
	for _, p := range periods {
		byType[p.PeriodType] = p
	}
	assert.Equal(suite.T(), 10, byType[models.CoveragePeriodBefore].Days)
	assert.True(suite.T(), byType[models.CoveragePeriodBefore].IsEligible)
	assert.Equal(suite.T(), 45, byType[models.CoveragePeriodAfter].Days)
	assert.False(suite.T(), byType[models.CoveragePeriodAfter].IsEligible)

	stored := suite.reload(claim.ID)
	assert.Equal(suite.T(), claim.Status, stored.Status)
	assert.Equal(suite.T(), claim.Stage, stored.Stage)
	assert.Contains(suite.T(), suite.timelineEvents(claim.ID), models.TimelineEventCoverageUpdated)
}

func (suite *ServiceTestSuite) TestCoverageUpsertReplacesWindow() {
	claim := suite.newDraft()
	set := func(end string) []models.ClaimCoveragePeriod {
		periods, err := suite.coverage.SetCoveragePeriods(suite.ctx, claim.ID, suite.agent, &SetCoverageRequest{
			Periods: []CoveragePeriodInput{
				{PeriodType: models.CoveragePeriodAfter, StartDate: day("2026-01-01"), EndDate: day(end)},
			},
		})
		require.NoError(suite.T(), err)
		return periods
	}

	first := set("2026-03-01")
	assert.False(suite.T(), first[0].IsEligible)

	second := set("2026-01-31")
	require.Len(suite.T(), second, 1)
	assert.Equal(suite.T(), first[0].ID, second[0].ID)
	assert.Equal(suite.T(), 30, second[0].Days)
	assert.True(suite.T(), second[0].IsEligible)
}

func (suite *ServiceTestSuite) TestCoverageRejectsBadInput() {
	claim := suite.newDraft()

	requests := []*SetCoverageRequest{
		{},
		{Periods: []CoveragePeriodInput{
			{PeriodType: models.CoveragePeriodBefore, StartDate: day("2026-02-01"), EndDate: day("2026-01-01")},
		}},
		{Periods: []CoveragePeriodInput{
			{PeriodType: models.CoveragePeriodBefore, StartDate: day("2026-01-01"), EndDate: day("2026-01-02")},
			{PeriodType: models.CoveragePeriodBefore, StartDate: day("2026-01-03"), EndDate: day("2026-01-04")},
		}},
		{Periods: []CoveragePeriodInput{
			{PeriodType: "DURING", StartDate: day("2026-01-01"), EndDate: day("2026-01-02")},
		}},
	}
	for _, req := range requests {
		_, err := suite.coverage.SetCoveragePeriods(suite.ctx, claim.ID, suite.agent, req)
		suite.requireKind(err, workflow.KindInvalidInput)
	}

	var rows int64
	require.NoError(suite.T(), suite.db.Model(&models.ClaimCoveragePeriod{}).Where("claim_id = ?", claim.ID).Count(&rows).Error)
	assert.Zero(suite.T(), rows)
}

func (suite *ServiceTestSuite) TestCoverageVisibility() {
	claim := suite.newDraft()
	req := &SetCoverageRequest{Periods: []CoveragePeriodInput{
		{PeriodType: models.CoveragePeriodBefore, StartDate: day("2026-01-01"), EndDate: day("2026-01-05")},
	}}

	_, err := suite.coverage.SetCoveragePeriods(suite.ctx, claim.ID, suite.developer, req)
	suite.requireKind(err, workflow.KindNotFound)

	_, err = suite.coverage.SetCoveragePeriods(suite.ctx, claim.ID, suite.agencyAdmin, req)
	suite.requireKind(err, workflow.KindForbidden)
}
