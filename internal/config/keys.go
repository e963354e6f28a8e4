package config

import "github.com/google/uuid"

// keyPrefix namespaces every key this service writes, so it can share a Redis
// with the admin subsystem.
const keyPrefix = "proctor:"

type redisKeys struct{}

// Keys names the Redis keys and channels used by the cache, the audit queue
// and the live monitor.
var Keys redisKeys

// ExamByCode caches the exam behind a normalized access code.
func (redisKeys) ExamByCode(accessCode string) string {
	return keyPrefix + "exam:code:" + accessCode
}

// ExamQuestions caches an exam's question list in authoring order.
func (redisKeys) ExamQuestions(examID uuid.UUID) string {
	return keyPrefix + "exam:" + examID.String() + ":questions"
}

// ExamMonitor is the pub/sub channel of an exam's live monitor.
func (redisKeys) ExamMonitor(examID uuid.UUID) string {
	return keyPrefix + "exam:" + examID.String() + ":monitor"
}

// ViolationQueue is the list the violation worker drains into Postgres.
func (redisKeys) ViolationQueue() string {
	return keyPrefix + "violations:audit"
}
