package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vanit/vanit/pkg/elastic_client"
)

type ScanElasticEvent struct {
	Timestamp time.Time

	Success    bool
	FailReason string

	StudentID string
	RouteName string
	CaptainID string
}

func (m *Manager) auditScan(studentID string, routeName string, captainID string, scanErr error, at time.Time) {
	event := ScanElasticEvent{
		Timestamp: at,
		Success:   scanErr == nil,
		StudentID: studentID,
		RouteName: routeName,
		CaptainID: captainID,
	}
	if scanErr != nil {
		event.FailReason = scanErr.Error()
	}

	yearNumber, weekNumber := at.ISOWeek()
	indexName := fmt.Sprintf("attendance-scan-events-%d-%d", yearNumber, weekNumber)

	elasticEvent, _ := json.Marshal(event)
	elastic_client.IndexRequest(indexName, bytes.NewReader(elasticEvent))
}
