// Command hiveartifacts extracts forensic artifacts from Windows registry
// hive files into CSV tables.
package main

func main() {
	execute()
}
