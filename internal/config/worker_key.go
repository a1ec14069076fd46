package config

type WorkerKeyStruct struct {
	NotificationQueue      string
	NotificationDeadLetter string
}

var WorkerKey = &WorkerKeyStruct{
	NotificationQueue:      "notification_queue",
	NotificationDeadLetter: "notification_dead_letter",
}
