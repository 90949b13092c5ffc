package services

import (
	"context"
	"errors"
	"fmt"

	"terretahub/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// ErrInvalidCredentials is returned when the identity provider rejects a login.
var ErrInvalidCredentials = errors.New("invalid email or password")

// IdentityProvider handles member registration and password checks.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	Login(ctx context.Context, email, password string) error
}

// CognitoProvider implements IdentityProvider with an AWS Cognito user pool.
type CognitoProvider struct {
	client          *cognitoidentityprovider.Client
	appClientID     string
	appClientSecret string
}

func NewCognitoProvider(ctx context.Context, region, appClientID, appClientSecret string) (*CognitoProvider, error) {
	cfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &CognitoProvider{
		client:          cognitoidentityprovider.NewFromConfig(cfg),
		appClientID:     appClientID,
		appClientSecret: appClientSecret,
	}, nil
}

func (p *CognitoProvider) secretHash(email string) *string {
	return aws.String(utils.GenerateSecretHash(email, p.appClientID, p.appClientSecret))
}

func (p *CognitoProvider) SignUp(ctx context.Context, email, password string) error {
	_, err := p.client.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId:   aws.String(p.appClientID),
		Password:   aws.String(password),
		SecretHash: p.secretHash(email),
		Username:   aws.String(email),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
			{Name: aws.String("nickname"), Value: aws.String(utils.ExtractNameFromEmail(email))},
		},
	})
	if err != nil {
		return fmt.Errorf("sign-up failed: %w", err)
	}
	return nil
}

func (p *CognitoProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := p.client.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(p.appClientID),
		ConfirmationCode: aws.String(code),
		Username:         aws.String(email),
		SecretHash:       p.secretHash(email),
	})
	if err != nil {
		return fmt.Errorf("email verification failed: %w", err)
	}
	return nil
}

func (p *CognitoProvider) Login(ctx context.Context, email, password string) error {
	out, err := p.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.appClientID),
		AuthParameters: map[string]string{
			"USERNAME":    email,
			"PASSWORD":    password,
			"SECRET_HASH": *p.secretHash(email),
		},
	})
	if err != nil || out.AuthenticationResult == nil {
		return ErrInvalidCredentials
	}
	return nil
}
