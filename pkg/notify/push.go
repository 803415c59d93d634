package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"github.com/vanit/vanit/pkg/database"
	"github.com/vanit/vanit/pkg/fleet"
	"go.mongodb.org/mongo-driver/bson"
	"google.golang.org/api/option"
)

type PushManager struct {
	FirebaseApp *firebase.App
}

func (m *PushManager) Setup() error {
	fireBaseAuthKey := os.Getenv("VANIT_FIREBASE_SERVICE_ACCOUNT")

	decodedKey, err := base64.StdEncoding.DecodeString(fireBaseAuthKey)
	if err != nil {
		return err
	}

	opts := []option.ClientOption{option.WithCredentialsJSON(decodedKey)}

	// Initialize firebase app
	app, err := firebase.NewApp(context.Background(), nil, opts...)

	if err != nil {
		return err
	}

	m.FirebaseApp = app

	return nil
}

func (m *PushManager) SendPush(studentID string, title string, message string) error {
	pushTargetCollection := database.GetCollection("student_push_targets")
	var pushTarget *fleet.StudentPushTarget

	pushTargetCollection.FindOne(context.Background(), bson.M{
		"studentid": studentID,
	}).Decode(&pushTarget)

	if pushTarget == nil {
		return errors.New("failed to find student device token")
	}

	fcmClient, err := m.FirebaseApp.Messaging(context.Background())

	if err != nil {
		return err
	}

	_, err = fcmClient.Send(context.Background(), &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  message,
		},
		Token: pushTarget.PushNotificationToken,
	})

	if err != nil {
		return err
	}

	log.Info().Str("target", studentID).Msg("Sent Push Notification")

	return nil
}
