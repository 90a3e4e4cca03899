package cache

// Tag names a cached region. Services load and invalidate whole regions
// rather than individual keys, so a mutation can drop every derived view
// that depends on the data it changed.
type Tag string

const (
	TagGlobalCategories      Tag = "globalCategories"
	TagAdminCategories       Tag = "adminCategories"
	TagQuestionsMetadata     Tag = "questionsMetadata"
	TagAdminQuestionsSummary Tag = "adminQuestionsSummary"
	TagUserStats             Tag = "userMeStats"
	TagCategoriesProgress    Tag = "categoriesProgress"
	TagAdminOverview         Tag = "adminOverview"
)

func (t Tag) String() string {
	return string(t)
}
