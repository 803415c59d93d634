package fleet

// Captain is the operator identity tied 1:1 with a vehicle stream. The
// captain's PrimaryIdentifier doubles as the vehicle identifier on the
// location feed.
type Captain struct {
	PrimaryIdentifier string `json:"primaryIdentifier" bson:"primaryidentifier" groups:"basic"`
	Name              string `json:"name" bson:"name" groups:"basic"`
	RouteName         string `json:"routeName" bson:"routename" groups:"basic"`
	Active            bool   `json:"active" bson:"active" groups:"basic"`
}

type Student struct {
	PrimaryIdentifier  string `json:"primaryIdentifier" bson:"primaryidentifier" groups:"basic"`
	Name               string `json:"name" bson:"name" groups:"basic"`
	RegistrationNumber string `json:"registrationNumber" bson:"registrationnumber" groups:"detailed"`

	// Assignment reference data. A scan is only accepted for the student's
	// assigned route.
	RouteName string `json:"routeName" bson:"routename" groups:"basic"`
	StopName  string `json:"stopName" bson:"stopname" groups:"basic"`
}

// StudentPushTarget maps a student to their registered push notification
// device.
type StudentPushTarget struct {
	StudentID             string `json:"studentId" bson:"studentid"`
	PushNotificationToken string `json:"pushNotificationToken" bson:"pushnotificationtoken"`
}
