package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps sessions and the ledger in MongoDB. The one-active-session
// invariant is backed by the partial unique index on
// (captainid, routename, active=true); the scan append runs inside a
// transaction so a record can never exist without its counter increment.
type MongoStore struct{}

func NewMongoStore() *MongoStore {
	return &MongoStore{}
}

func (s *MongoStore) GetOrCreateSession(ctx context.Context, captainID string, routeName string, now time.Time) (*fleet.BoardingSession, error) {
	return s.getOrCreateSession(ctx, captainID, routeName, now)
}

func (s *MongoStore) getOrCreateSession(ctx context.Context, captainID string, routeName string, now time.Time) (*fleet.BoardingSession, error) {
	sessionsCollection := database.GetCollection("boarding_sessions")

	// Filter equality fields become part of the inserted document on upsert,
	// so only the remaining fields go in $setOnInsert.
	filter := bson.M{"captainid": captainID, "routename": routeName, "active": true}
	update := bson.M{"$setOnInsert": bson.M{
		"primaryidentifier": uuid.New().String(),
		"startedat":         now,
		"onboardcount":      0,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var session fleet.BoardingSession
	err := sessionsCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if mongo.IsDuplicateKeyError(err) {
		// Lost the insert race against a concurrent first scan. The session
		// exists now and the filter matches it, so one retry resolves it.
		err = sessionsCollection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	}
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *MongoStore) AppendScan(ctx context.Context, captainID string, routeName string, record fleet.AttendanceRecord, suppressionWindow time.Duration) (*fleet.BoardingSession, error) {
	mongoSession, err := database.MongoGlobalInstance.Client.StartSession()
	if err != nil {
		return nil, err
	}
	defer mongoSession.EndSession(ctx)

	result, err := mongoSession.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		recordsCollection := database.GetCollection("attendance_records")

		// Authoritative duplicate check against the durable ledger. The
		// manager's in-memory map only short-circuits the common case.
		var lastRecord fleet.AttendanceRecord
		err := recordsCollection.FindOne(sessCtx,
			bson.M{"studentid": record.StudentID, "routename": routeName},
			options.FindOne().SetSort(bson.D{{Key: "scannedat", Value: -1}}),
		).Decode(&lastRecord)
		if err == nil {
			if record.ScannedAt.Sub(lastRecord.ScannedAt) < suppressionWindow {
				return nil, ErrDuplicateScan
			}
		} else if err != mongo.ErrNoDocuments {
			return nil, err
		}

		boardingSession, err := s.getOrCreateSession(sessCtx, captainID, routeName, record.ScannedAt)
		if err != nil {
			return nil, err
		}

		record.SessionID = boardingSession.PrimaryIdentifier
		if _, err := recordsCollection.InsertOne(sessCtx, record); err != nil {
			return nil, err
		}

		sessionsCollection := database.GetCollection("boarding_sessions")
		var updated fleet.BoardingSession
		err = sessionsCollection.FindOneAndUpdate(sessCtx,
			bson.M{"primaryidentifier": boardingSession.PrimaryIdentifier},
			bson.M{"$inc": bson.M{"onboardcount": 1}},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			return nil, err
		}

		return &updated, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*fleet.BoardingSession), nil
}

func (s *MongoStore) EndSessions(ctx context.Context, captainID string, routeName string, now time.Time) ([]fleet.BoardingSession, error) {
	sessionsCollection := database.GetCollection("boarding_sessions")

	filter := bson.M{"captainid": captainID, "active": true}
	if routeName != "" {
		filter["routename"] = routeName
	}

	cursor, err := sessionsCollection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	var active []fleet.BoardingSession
	if err := cursor.All(ctx, &active); err != nil {
		return nil, err
	}

	endOptions := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ended []fleet.BoardingSession
	for _, session := range active {
		// The post-update document carries the final onboard count, even when
		// a scan commits between the find above and this update.
		var updated fleet.BoardingSession
		err := sessionsCollection.FindOneAndUpdate(ctx,
			bson.M{"primaryidentifier": session.PrimaryIdentifier, "active": true},
			bson.M{"$set": bson.M{"active": false, "endedat": now}},
			endOptions,
		).Decode(&updated)
		if err == mongo.ErrNoDocuments {
			// Already ended by a concurrent caller
			continue
		}
		if err != nil {
			return nil, err
		}

		ended = append(ended, updated)
	}

	return ended, nil
}

func (s *MongoStore) ActiveSessions(ctx context.Context, captainID string, routeName string) ([]fleet.BoardingSession, error) {
	sessionsCollection := database.GetCollection("boarding_sessions")

	filter := bson.M{"active": true}
	if captainID != "" {
		filter["captainid"] = captainID
	}
	if routeName != "" {
		filter["routename"] = routeName
	}

	cursor, err := sessionsCollection.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "startedat", Value: -1}}))
	if err != nil {
		return nil, err
	}

	var sessions []fleet.BoardingSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}

	return sessions, nil
}

func (s *MongoStore) History(ctx context.Context, studentID string, from *time.Time, to *time.Time, limit int64) ([]fleet.AttendanceRecord, error) {
	recordsCollection := database.GetCollection("attendance_records")

	scannedAt := bson.M{}
	if from != nil {
		scannedAt["$gte"] = *from
	}
	if to != nil {
		scannedAt["$lte"] = *to
	}

	filter := bson.M{"studentid": studentID}
	if len(scannedAt) > 0 {
		filter["scannedat"] = scannedAt
	}

	opts := options.Find().SetSort(bson.D{{Key: "scannedat", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(limit)
	}

	cursor, err := recordsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var records []fleet.AttendanceRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}
