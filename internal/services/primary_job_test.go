package services

import (
	"github.com/maxaizer/talent-intake/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func experience(id string, marker models.CurrentMarker, start, end string) models.Experience {
	return models.Experience{
		ExternalID: id,
		Current:    marker,
		StartDate:  models.ParseDate(start),
		EndDate:    models.ParseDate(end),
	}
}

func Test_SelectPrimary_Empty(t *testing.T) {
	assert.Nil(t, SelectPrimary(nil))
	assert.Nil(t, SelectPrimary([]models.Experience{}))
}

func Test_SelectPrimary_CurrentBeatsRecentlyEndedPast(t *testing.T) {
	experiences := []models.Experience{
		experience("ER000001", models.MarkerPast, "2021-01-01", "2024-01-01"),
		experience("ER000002", models.MarkerCurrent, "2020-01-01", ""),
	}

	primary := SelectPrimary(experiences)

	require.NotNil(t, primary)
	assert.Equal(t, "ER000002", primary.ExternalID)
}

func Test_SelectPrimary_LatestStartAmongCurrent(t *testing.T) {
	experiences := []models.Experience{
		experience("ER000001", models.MarkerCurrent, "2019-05-01", ""),
		experience("ER000002", models.MarkerCurrent, "2022-05-01", ""),
		experience("ER000003", models.MarkerUnknown, "2023-05-01", ""),
	}

	assert.Equal(t, "ER000002", SelectPrimary(experiences).ExternalID)
}

func Test_SelectPrimary_PastOnlyUsesEndDateThenStartDate(t *testing.T) {
	experiences := []models.Experience{
		experience("ER000001", models.MarkerPast, "2015-01-01", "2018-01-01"),
		experience("ER000002", models.MarkerPast, "2016-01-01", "2020-06-01"),
		experience("ER000003", models.MarkerUnknown, "2019-01-01", ""),
	}
	assert.Equal(t, "ER000002", SelectPrimary(experiences).ExternalID)

	experiences = append(experiences, experience("ER000004", models.MarkerUnknown, "2021-01-01", ""))
	assert.Equal(t, "ER000004", SelectPrimary(experiences).ExternalID)
}

func Test_SelectPrimary_ReturnsCopy(t *testing.T) {
	experiences := []models.Experience{experience("ER000001", models.MarkerCurrent, "2020-01-01", "")}

	primary := SelectPrimary(experiences)
	primary.Company = "changed"

	assert.Empty(t, experiences[0].Company)
}

func Test_ParseCurrentMarker(t *testing.T) {
	assert.Equal(t, models.MarkerCurrent, models.ParseCurrentMarker(" Present "))
	assert.Equal(t, models.MarkerCurrent, models.ParseCurrentMarker("TRUE"))
	assert.Equal(t, models.MarkerPast, models.ParseCurrentMarker("former"))
	assert.Equal(t, models.MarkerPast, models.ParseCurrentMarker("0"))
	assert.Equal(t, models.MarkerUnknown, models.ParseCurrentMarker(""))
	assert.Equal(t, models.MarkerUnknown, models.ParseCurrentMarker("maybe"))
}
