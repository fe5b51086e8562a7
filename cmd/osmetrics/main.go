// Command osmetrics ingests GitHub webhook deliveries and CloudWatch alarms
// into metric documents and scores repository health.
package main

func main() {
	Execute()
}
