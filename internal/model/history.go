package model

// HistoryRecord is the latest serialized plan for one (user, project) pair.
type HistoryRecord struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	History   string `json:"history"`
}

// HistoryID builds the composite primary key.
func HistoryID(userID, projectID string) string {
	return projectID + "x" + userID
}

func NewHistoryRecord(history, userID, projectID string) HistoryRecord {
	return HistoryRecord{
		ID:        HistoryID(userID, projectID),
		UserID:    userID,
		ProjectID: projectID,
		History:   history,
	}
}
