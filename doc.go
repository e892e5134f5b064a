/*
Package awsclient implements a low-level client for AWS HTTP APIs. It
resolves credentials and region the same way the AWS CLI does, signs
arbitrary requests with AWS Signature Version 4 and normalizes the various
AWS error response shapes into one error type. It is meant as a building
block for service specific API implementations, not as a full SDK: it does
not build service requests, paginate, or retry.

Credentials are looked up from the AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
and AWS_SESSION_TOKEN environment variables, the shared credentials file
(~/.aws/credentials, or the AWS_SHARED_CREDENTIALS_FILE override) and the
EC2 instance metadata service, in that order. The region comes from
AWS_DEFAULT_REGION, the shared config file (~/.aws/config, or
AWS_CONFIG_FILE), or the instance identity document. Instance metadata
credentials are cached and refreshed once expired.

A minimal DynamoDB call:

	client, err := awsclient.New(awsclient.Options{Service: "dynamodb"})
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	rsp, err := client.Fetch(context.Background(), "POST", "/", nil,
		http.Header{"X-Amz-Target": []string{"DynamoDB_20120810.ListTables"}},
		[]byte("{}"))

Failed requests return *awserr.Error carrying the AWS error code, message
and HTTP status. Retrying is up to the caller; the client only invalidates
its cached instance credentials when a response signals an expired or
rejected token, so a retry picks up fresh ones.
*/
package awsclient
