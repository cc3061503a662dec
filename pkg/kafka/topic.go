package kafka

import "fmt"

// TopicPrefix prefixes every payment subsystem topic.
const TopicPrefix = "payments"

// Topic builds "payments.{domain}.{action}".
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}
